package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Default credit accounting parameters. Callers may override them through
// the calculation and check functions.
const (
	DefaultTokensPerCredit = 70
	DefaultMinimumCredit   = 20
)

// CustomerCredit tracks the remaining and lifetime-spent credit balance
// for a customer across all of their bots.
type CustomerCredit struct {
	CustomerCreditID uint      `json:"customerCreditId" gorm:"column:customer_credit_id;primaryKey"`
	CustomerID       uint      `json:"customerId" gorm:"column:customer_id;uniqueIndex"`
	Credits          int64     `json:"credits" gorm:"default:0"`
	TotalSpent       int64     `json:"totalSpent" gorm:"column:total_spent;default:0"`
	CreatedAt        time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (CustomerCredit) TableName() string {
	return "customer_credit"
}

// CreditCheck is the result of a balance inspection before a session is
// allowed to proceed.
type CreditCheck struct {
	HasCredits     bool  `json:"hasCredits"`
	CurrentCredits int64 `json:"currentCredits"`
}

// ceilDiv returns ceil(a/b) for positive b without floating point.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// CalculateCreditsUsed converts a token count into a credit charge.
// The base rate is one credit per tokensPerCredit tokens, with a 1.5x
// surcharge above 1000 tokens and 1.2x above 500 tokens. The result is
// rounded up and never falls below minimumCredit. The tier multipliers
// are applied as exact integer ratios so the ceiling matches the rated
// price with no float drift.
func CalculateCreditsUsed(totalTokens int64, tokensPerCredit, minimumCredit int64) int64 {
	if tokensPerCredit <= 0 {
		tokensPerCredit = DefaultTokensPerCredit
	}
	var credits int64
	switch {
	case totalTokens > 1000:
		// tokens/tpc * 3/2
		credits = ceilDiv(totalTokens*3, 2*tokensPerCredit)
	case totalTokens > 500:
		// tokens/tpc * 6/5
		credits = ceilDiv(totalTokens*6, 5*tokensPerCredit)
	default:
		credits = ceilDiv(totalTokens, tokensPerCredit)
	}
	if credits < minimumCredit {
		return minimumCredit
	}
	return credits
}

// CheckCustomerCredits reports whether the customer's balance meets the
// given floor. A missing credit row counts as a zero balance, not an error.
func CheckCustomerCredits(db *gorm.DB, customerID uint, minimumCredits int64) (*CreditCheck, error) {
	var record CustomerCredit
	err := db.Where("customer_id = ?", customerID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &CreditCheck{HasCredits: false, CurrentCredits: 0}, nil
		}
		return nil, err
	}
	return &CreditCheck{
		HasCredits:     record.Credits >= minimumCredits,
		CurrentCredits: record.Credits,
	}, nil
}

// ErrInsufficientCredits is returned when a conditional deduction finds a
// balance below the amount being charged.
var ErrInsufficientCredits = fmt.Errorf("insufficient credits")

// DeductCustomerCredits atomically charges the customer. The deduction and
// the balance guard run in a single conditional UPDATE so concurrent
// sessions can never drive the balance negative.
func DeductCustomerCredits(db *gorm.DB, customerID uint, totalCredits int64) error {
	if totalCredits <= 0 {
		return nil
	}
	result := db.Model(&CustomerCredit{}).
		Where("customer_id = ? AND credits >= ?", customerID, totalCredits).
		Updates(map[string]interface{}{
			"credits":     gorm.Expr("credits - ?", totalCredits),
			"total_spent": gorm.Expr("total_spent + ?", totalCredits),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var record CustomerCredit
		if err := db.Where("customer_id = ?", customerID).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("no customer_credit record found for customer %d", customerID)
			}
			return err
		}
		return ErrInsufficientCredits
	}
	return nil
}
