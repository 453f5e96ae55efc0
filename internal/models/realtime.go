package models

import (
	"time"

	"gorm.io/gorm"
)

// CustomerRealtimeInformation is a per-customer key/value memory the agent
// reads during greetings and updates mid-conversation through a tool call.
type CustomerRealtimeInformation struct {
	CustomerRealtimeInformationID uint      `json:"customerRealtimeInformationId" gorm:"column:customer_realtime_information_id;primaryKey"`
	CustomerID                    uint      `json:"customerId" gorm:"column:customer_id;index:idx_customer_info_key,unique"`
	InfoKey                       string    `json:"infoKey" gorm:"column:info_key;size:200;index:idx_customer_info_key,unique"`
	InfoValue                     string    `json:"infoValue" gorm:"column:info_value;type:text"`
	CreatedAt                     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt                     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (CustomerRealtimeInformation) TableName() string {
	return "customer_realtime_information"
}

// GetRealtimeInformation returns all stored key/value pairs for a customer.
func GetRealtimeInformation(db *gorm.DB, customerID uint) (map[string]string, error) {
	var rows []CustomerRealtimeInformation
	if err := db.Where("customer_id = ?", customerID).Find(&rows).Error; err != nil {
		return nil, err
	}
	info := make(map[string]string, len(rows))
	for _, row := range rows {
		info[row.InfoKey] = row.InfoValue
	}
	return info, nil
}

// UpsertRealtimeInformation updates the value for an existing key or
// inserts a new row when the key is not present yet.
func UpsertRealtimeInformation(db *gorm.DB, customerID uint, key, value string) error {
	result := db.Model(&CustomerRealtimeInformation{}).
		Where("customer_id = ? AND info_key = ?", customerID, key).
		Update("info_value", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.Create(&CustomerRealtimeInformation{
			CustomerID: customerID,
			InfoKey:    key,
			InfoValue:  value,
		}).Error
	}
	return nil
}
