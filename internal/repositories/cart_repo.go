package repositories

import (
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CartRepo interface {
	Create(cart *models.Cart) error
	GetActiveCart(userID uuid.UUID) (*models.Cart, error)
	Update(cart *models.Cart) error
	MarkCheckedOut(id uuid.UUID) error
	ExpireCart(id uuid.UUID) error
	CleanupExpiredCarts() (int64, error)
}

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepo(db *gorm.DB) CartRepo {
	return &cartRepo{db: db}
}

func (r *cartRepo) Create(cart *models.Cart) error {
	return r.db.Create(cart).Error
}

func (r *cartRepo) GetActiveCart(userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.Where("user_id = ? AND status = ?", userID, models.CartStatusActive).
		First(&cart).Error
	return &cart, err
}

func (r *cartRepo) Update(cart *models.Cart) error {
	return r.db.Save(cart).Error
}

func (r *cartRepo) MarkCheckedOut(id uuid.UUID) error {
	return r.db.Model(&models.Cart{}).
		Where("id = ?", id).
		Update("status", models.CartStatusCheckedOut).Error
}

func (r *cartRepo) ExpireCart(id uuid.UUID) error {
	return r.db.Model(&models.Cart{}).
		Where("id = ?", id).
		Update("status", models.CartStatusExpired).Error
}

func (r *cartRepo) CleanupExpiredCarts() (int64, error) {
	res := r.db.Model(&models.Cart{}).
		Where("status = ? AND expires_at < ?", models.CartStatusActive, time.Now()).
		Update("status", models.CartStatusExpired)
	return res.RowsAffected, res.Error
}
