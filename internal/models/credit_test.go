package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCreditTestDB(t *testing.T) *gorm.DB {
	return setupTestDBWithSilentLogger(t, &CustomerCredit{})
}

func TestCustomerCredit_TableName(t *testing.T) {
	var credit CustomerCredit
	assert.Equal(t, "customer_credit", credit.TableName())
}

func TestCalculateCreditsUsed_Tiers(t *testing.T) {
	tests := []struct {
		name        string
		totalTokens int64
		expected    int64
	}{
		{"small usage hits the floor", 70, 20},
		{"zero tokens hits the floor", 0, 20},
		{"boundary 500 stays in base tier", 500, 20},
		{"mid tier below floor still floors", 600, 20},
		{"boundary 1000 stays in mid tier", 1000, 20},
		{"high tier exact multiple", 1400, 30},
		{"high tier with rounding", 5000, 108},
		{"just over high tier boundary", 1001, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCreditsUsed(tt.totalTokens, DefaultTokensPerCredit, DefaultMinimumCredit)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalculateCreditsUsed_CeilingNotTruncation(t *testing.T) {
	// 71 tokens is just over one credit, so the base tier rounds up to 2
	// before the floor applies.
	got := CalculateCreditsUsed(71, 70, 1)
	assert.Equal(t, int64(2), got)

	// 1400 tokens at 1.5x is exactly 30, no rounding needed.
	got = CalculateCreditsUsed(1400, 70, 1)
	assert.Equal(t, int64(30), got)
}

func TestCheckCustomerCredits_SufficientBalance(t *testing.T) {
	db := setupCreditTestDB(t)

	err := db.Create(&CustomerCredit{CustomerID: 7, Credits: 100}).Error
	require.NoError(t, err)

	check, err := CheckCustomerCredits(db, 7, 20)
	require.NoError(t, err)
	assert.True(t, check.HasCredits)
	assert.Equal(t, int64(100), check.CurrentCredits)
}

func TestCheckCustomerCredits_BelowFloor(t *testing.T) {
	db := setupCreditTestDB(t)

	err := db.Create(&CustomerCredit{CustomerID: 7, Credits: 19}).Error
	require.NoError(t, err)

	check, err := CheckCustomerCredits(db, 7, 20)
	require.NoError(t, err)
	assert.False(t, check.HasCredits)
	assert.Equal(t, int64(19), check.CurrentCredits)
}

func TestCheckCustomerCredits_MissingRecordIsZeroBalance(t *testing.T) {
	db := setupCreditTestDB(t)

	check, err := CheckCustomerCredits(db, 999, 20)
	require.NoError(t, err)
	assert.False(t, check.HasCredits)
	assert.Equal(t, int64(0), check.CurrentCredits)
}

func TestDeductCustomerCredits_Success(t *testing.T) {
	db := setupCreditTestDB(t)

	err := db.Create(&CustomerCredit{CustomerID: 3, Credits: 100, TotalSpent: 50}).Error
	require.NoError(t, err)

	err = DeductCustomerCredits(db, 3, 30)
	require.NoError(t, err)

	var record CustomerCredit
	require.NoError(t, db.Where("customer_id = ?", 3).First(&record).Error)
	assert.Equal(t, int64(70), record.Credits)
	assert.Equal(t, int64(80), record.TotalSpent)
}

func TestDeductCustomerCredits_InsufficientBalanceLeavesRowUntouched(t *testing.T) {
	db := setupCreditTestDB(t)

	err := db.Create(&CustomerCredit{CustomerID: 3, Credits: 25, TotalSpent: 10}).Error
	require.NoError(t, err)

	err = DeductCustomerCredits(db, 3, 30)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	var record CustomerCredit
	require.NoError(t, db.Where("customer_id = ?", 3).First(&record).Error)
	assert.Equal(t, int64(25), record.Credits)
	assert.Equal(t, int64(10), record.TotalSpent)
}

func TestDeductCustomerCredits_ExactBalanceDrainsToZero(t *testing.T) {
	db := setupCreditTestDB(t)

	err := db.Create(&CustomerCredit{CustomerID: 3, Credits: 30}).Error
	require.NoError(t, err)

	err = DeductCustomerCredits(db, 3, 30)
	require.NoError(t, err)

	var record CustomerCredit
	require.NoError(t, db.Where("customer_id = ?", 3).First(&record).Error)
	assert.Equal(t, int64(0), record.Credits)
}

func TestDeductCustomerCredits_MissingRecord(t *testing.T) {
	db := setupCreditTestDB(t)

	err := DeductCustomerCredits(db, 42, 30)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientCredits)
}

func TestDeductCustomerCredits_ZeroChargeIsNoop(t *testing.T) {
	db := setupCreditTestDB(t)

	err := DeductCustomerCredits(db, 42, 0)
	assert.NoError(t, err)
}

func TestCheckCustomerCredits_RepeatedChecksAreStable(t *testing.T) {
	db := setupCreditTestDB(t)
	require.NoError(t, db.Create(&CustomerCredit{CustomerID: 7, Credits: 35}).Error)

	first, err := CheckCustomerCredits(db, 7, 20)
	require.NoError(t, err)
	second, err := CheckCustomerCredits(db, 7, 20)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
