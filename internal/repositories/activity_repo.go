package repositories

import (
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityRepo interface {
	Create(entry *models.ActivityLog) error
	List(userID *uuid.UUID, action string, limit, offset int) ([]models.ActivityLog, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type activityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) ActivityRepo {
	return &activityRepo{db: db}
}

func (r *activityRepo) Create(entry *models.ActivityLog) error {
	return r.db.Create(entry).Error
}

func (r *activityRepo) List(userID *uuid.UUID, action string, limit, offset int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := r.db.Model(&models.ActivityLog{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var entries []models.ActivityLog
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, err
}

func (r *activityRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}
