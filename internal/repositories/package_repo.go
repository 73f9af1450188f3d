package repositories

import (
	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PackageRepo interface {
	ListActive() ([]models.CreditPackage, error)
	GetByID(id uuid.UUID) (*models.CreditPackage, error)
}

type packageRepo struct {
	db *gorm.DB
}

func NewPackageRepo(db *gorm.DB) PackageRepo {
	return &packageRepo{db: db}
}

func (r *packageRepo) ListActive() ([]models.CreditPackage, error) {
	var packages []models.CreditPackage
	err := r.db.Where("active = ?", true).Order("price ASC").Find(&packages).Error
	return packages, err
}

func (r *packageRepo) GetByID(id uuid.UUID) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	err := r.db.First(&pkg, "id = ?", id).Error
	return &pkg, err
}
