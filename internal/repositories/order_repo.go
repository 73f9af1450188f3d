package repositories

import (
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepo interface {
	Create(order *models.Order) error
	GetByID(id uuid.UUID) (*models.Order, error)
	GetByPaymentReference(reference string) (*models.Order, error)
	MarkPaid(id uuid.UUID, reference, method string) error
	MarkPending(id uuid.UUID, reference string) error
	MarkFailed(id uuid.UUID, reference string) error
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepo) GetByID(id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, "id = ?", id).Error
	return &order, err
}

func (r *orderRepo) GetByPaymentReference(reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("payment_reference = ?", reference).First(&order).Error
	return &order, err
}

func (r *orderRepo) MarkPaid(id uuid.UUID, reference, method string) error {
	now := time.Now()
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusPaid,
			"payment_reference": reference,
			"payment_method":    method,
			"paid_at":           &now,
		}).Error
}

func (r *orderRepo) MarkPending(id uuid.UUID, reference string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusPending,
			"payment_reference": reference,
		}).Error
}

func (r *orderRepo) MarkFailed(id uuid.UUID, reference string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusFailed,
			"payment_reference": reference,
		}).Error
}
