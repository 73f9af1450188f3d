package services

import (
	"errors"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditService fronts the credit ledger. Balance reads are side-effect
// free; the free-credit grant is provisioned lazily on first genuine use.
type CreditService struct {
	creditRepo  repositories.CreditRepo
	freeCredits int
}

func NewCreditService(creditRepo repositories.CreditRepo, freeCredits int) *CreditService {
	return &CreditService{
		creditRepo:  creditRepo,
		freeCredits: freeCredits,
	}
}

// Balance returns the current balance, 0 for unknown users.
func (s *CreditService) Balance(userID uuid.UUID) (int, error) {
	return s.creditRepo.GetBalance(userID)
}

// EnsureAccount provisions the account with free credits on first use.
func (s *CreditService) EnsureAccount(userID uuid.UUID) (*models.CreditAccount, error) {
	return s.creditRepo.EnsureAccount(userID, s.freeCredits)
}

// Deduct consumes exactly one credit. ErrInsufficientCredits is a normal
// outcome the caller surfaces, not a storage failure.
func (s *CreditService) Deduct(userID uuid.UUID) error {
	return s.creditRepo.DeductCredit(userID)
}

// GrantPurchased credits a confirmed payment idempotently; a repeated
// reference is swallowed as a no-op.
func (s *CreditService) GrantPurchased(userID uuid.UUID, amount int, reference string) error {
	if _, err := s.creditRepo.EnsureAccount(userID, s.freeCredits); err != nil {
		return err
	}
	err := s.creditRepo.GrantPurchased(userID, amount, reference)
	if errors.Is(err, repositories.ErrDuplicateReference) {
		log.Printf("⏭️ Credits for reference %s already granted, skipping", reference)
		return nil
	}
	return err
}

// AdminAdjust moves the balance to target with a single correction
// transaction, so corrections stay distinguishable from fitting usage in
// the ledger. The delta is computed from a fresh read; a concurrent deduct
// landing in between surfaces as ErrInsufficientCredits and the admin
// retries.
func (s *CreditService) AdminAdjust(userID uuid.UUID, target int) (int, error) {
	if target < 0 {
		return 0, errors.New("target balance cannot be negative")
	}
	account, err := s.creditRepo.EnsureAccount(userID, s.freeCredits)
	if err != nil {
		return 0, err
	}

	current := account.CreditsRemaining
	if delta := target - current; delta != 0 {
		if err := s.creditRepo.AdjustBalance(userID, delta, "admin correction"); err != nil {
			return current, err
		}
	}

	balance, err := s.creditRepo.GetBalance(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	log.Printf("🔧 Admin adjusted credits for %s: %d -> %d", userID, current, balance)
	return balance, nil
}

// History lists recent ledger transactions for a user.
func (s *CreditService) History(userID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	return s.creditRepo.ListTransactions(userID, limit)
}
