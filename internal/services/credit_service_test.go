package services

import (
	"testing"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAdjustRecordsCorrections(t *testing.T) {
	svc := NewCreditService(repositories.NewCreditRepo(testDB(t)), 3)
	userID := uuid.New()

	balance, err := svc.AdminAdjust(userID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	balance, err = svc.AdminAdjust(userID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)

	// Setting the balance to its current value must not write a transaction.
	balance, err = svc.AdminAdjust(userID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)

	txs, err := svc.History(userID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	var grants, corrections int
	for _, tx := range txs {
		switch tx.Type {
		case models.CreditTxGrant:
			grants++
		case models.CreditTxCorrection:
			corrections++
		case models.CreditTxUsage:
			t.Fatalf("admin correction recorded as usage: %+v", tx)
		}
	}
	assert.Equal(t, 1, grants)
	assert.Equal(t, 2, corrections)
}

func TestAdminAdjustRejectsNegativeTarget(t *testing.T) {
	svc := NewCreditService(repositories.NewCreditRepo(testDB(t)), 3)

	_, err := svc.AdminAdjust(uuid.New(), -1)
	assert.Error(t, err)
}
