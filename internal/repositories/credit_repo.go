package repositories

import (
	"errors"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientCredits is a normal outcome, not a storage failure.
	// Callers surface it as "insufficient credits" and must not retry.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDuplicateReference means credits for this payment reference were
	// already granted; duplicate webhook deliveries hit this.
	ErrDuplicateReference = errors.New("credits already granted for reference")
)

type CreditRepo interface {
	// GetBalance returns 0 for an unknown user without creating a row.
	GetBalance(userID uuid.UUID) (int, error)

	// EnsureAccount provisions the free-credit grant on first genuine use.
	EnsureAccount(userID uuid.UUID, freeCredits int) (*models.CreditAccount, error)

	// AdjustBalance applies an admin correction of delta credits in one
	// statement, recorded as a correction transaction. A downward
	// correction only applies when the balance covers it.
	AdjustBalance(userID uuid.UUID, delta int, note string) error

	// DeductCredit decrements by one only when the balance covers it.
	DeductCredit(userID uuid.UUID) error

	// GrantPurchased credits a confirmed payment exactly once, keyed on the
	// payment reference.
	GrantPurchased(userID uuid.UUID, amount int, reference string) error

	ListTransactions(userID uuid.UUID, limit int) ([]models.CreditTransaction, error)
}

type creditRepo struct {
	db *gorm.DB
}

func NewCreditRepo(db *gorm.DB) CreditRepo {
	return &creditRepo{db: db}
}

func (r *creditRepo) GetBalance(userID uuid.UUID) (int, error) {
	var account models.CreditAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.CreditsRemaining, nil
}

func (r *creditRepo) EnsureAccount(userID uuid.UUID, freeCredits int) (*models.CreditAccount, error) {
	var account models.CreditAccount
	res := r.db.Where("user_id = ?", userID).
		Attrs(models.CreditAccount{
			UserID:           userID,
			CreditsRemaining: freeCredits,
		}).
		FirstOrCreate(&account)
	if res.Error != nil {
		// Lost a create race against a concurrent first request; the row
		// exists now, read it back.
		var retry models.CreditAccount
		if rerr := r.db.Where("user_id = ?", userID).First(&retry).Error; rerr == nil {
			return &retry, nil
		}
		return nil, res.Error
	}
	if res.RowsAffected == 1 && freeCredits > 0 {
		if err := r.db.Create(&models.CreditTransaction{
			UserID: userID,
			Type:   models.CreditTxGrant,
			Amount: freeCredits,
			Note:   "welcome credits",
		}).Error; err != nil {
			// The account already exists; the grant record is advisory.
			return &account, nil
		}
	}
	return &account, nil
}

// AdjustBalance guards downward corrections the same way DeductCredit does:
// the WHERE clause refuses any delta that would take the balance negative.
// Corrections never touch total_purchased.
func (r *creditRepo) AdjustBalance(userID uuid.UUID, delta int, note string) error {
	if delta == 0 {
		return nil
	}
	res := r.db.Model(&models.CreditAccount{}).
		Where("user_id = ? AND credits_remaining + ? >= 0", userID, delta).
		Updates(map[string]interface{}{
			"credits_remaining": gorm.Expr("credits_remaining + ?", delta),
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	if err := r.db.Create(&models.CreditTransaction{
		UserID: userID,
		Type:   models.CreditTxCorrection,
		Amount: delta,
		Note:   note,
	}).Error; err != nil {
		// The adjustment itself already committed; the record is advisory.
		return nil
	}
	return nil
}

// DeductCredit relies on the WHERE guard: two concurrent requests observing
// balance=1 cannot both win, the second update matches zero rows.
func (r *creditRepo) DeductCredit(userID uuid.UUID) error {
	res := r.db.Model(&models.CreditAccount{}).
		Where("user_id = ? AND credits_remaining >= 1", userID).
		Updates(map[string]interface{}{
			"credits_remaining": gorm.Expr("credits_remaining - 1"),
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	if err := r.db.Create(&models.CreditTransaction{
		UserID: userID,
		Type:   models.CreditTxUsage,
		Amount: -1,
	}).Error; err != nil {
		// The deduct itself already committed; the usage record is advisory.
		return nil
	}
	return nil
}

func (r *creditRepo) GrantPurchased(userID uuid.UUID, amount int, reference string) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.CreditTransaction
		err := tx.Where("reference = ?", reference).First(&existing).Error
		if err == nil {
			return ErrDuplicateReference
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// The unique index on reference backstops this check if two webhook
		// deliveries race past the read.
		if err := tx.Create(&models.CreditTransaction{
			UserID:    userID,
			Type:      models.CreditTxPurchase,
			Amount:    amount,
			Reference: &reference,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"credits_remaining": gorm.Expr("credits_remaining + ?", amount),
				"total_purchased":   gorm.Expr("total_purchased + ?", amount),
				"updated_at":        time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *creditRepo) ListTransactions(userID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txs []models.CreditTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
