package retention

import (
	"log"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/core/upload"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the rolling cleanup jobs: activity log pruning, fitting
// result purging, and cart expiry.
type Scheduler struct {
	cron         *cron.Cron
	activityRepo repositories.ActivityRepo
	cartRepo     repositories.CartRepo
	storage      upload.Provider

	activityRetention time.Duration
	resultRetention   time.Duration
}

// NewScheduler creates a new retention scheduler
func NewScheduler(
	activityRepo repositories.ActivityRepo,
	cartRepo repositories.CartRepo,
	storage upload.Provider,
	activityRetentionDays, resultRetentionHours int,
) *Scheduler {
	return &Scheduler{
		cron:              cron.New(),
		activityRepo:      activityRepo,
		cartRepo:          cartRepo,
		storage:           storage,
		activityRetention: time.Duration(activityRetentionDays) * 24 * time.Hour,
		resultRetention:   time.Duration(resultRetentionHours) * time.Hour,
	}
}

// Start registers and starts the cleanup jobs
func (s *Scheduler) Start() error {
	// Activity log pruning: daily, off-peak.
	if _, err := s.cron.AddFunc("15 3 * * *", s.pruneActivity); err != nil {
		return err
	}
	// Result and photo purging: hourly.
	if _, err := s.cron.AddFunc("@hourly", s.purgeFiles); err != nil {
		return err
	}
	// Cart expiry: every 30 minutes.
	if _, err := s.cron.AddFunc("*/30 * * * *", s.expireCarts); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("⏰ Retention scheduler started")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("⏰ Retention scheduler stopped")
}

func (s *Scheduler) pruneActivity() {
	cutoff := time.Now().Add(-s.activityRetention)
	deleted, err := s.activityRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("❌ Activity log pruning failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("🧹 Pruned %d activity log entries older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}

func (s *Scheduler) purgeFiles() {
	cutoff := time.Now().Add(-s.resultRetention)

	purged, err := s.storage.PurgeOlderThan(upload.FolderResults, cutoff)
	if err != nil {
		log.Printf("❌ Result purging failed: %v", err)
	} else if purged > 0 {
		log.Printf("🧹 Purged %d fitting results", purged)
	}

	// Uploaded photos follow the same window as results.
	purged, err = s.storage.PurgeOlderThan(upload.FolderPhotos, cutoff)
	if err != nil {
		log.Printf("❌ Photo purging failed: %v", err)
	} else if purged > 0 {
		log.Printf("🧹 Purged %d uploaded photos", purged)
	}
}

func (s *Scheduler) expireCarts() {
	expired, err := s.cartRepo.CleanupExpiredCarts()
	if err != nil {
		log.Printf("❌ Cart expiry failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("🧹 Expired %d stale carts", expired)
	}
}
