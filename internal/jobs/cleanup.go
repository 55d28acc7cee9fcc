package jobs

import (
	"log/slog"
	"time"

	"chatlytics/internal/config"
	"chatlytics/internal/conversations"
	"chatlytics/internal/database"
)

// CleanupJob handles cleanup of old conversation messages
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run removes conversation messages older than the retention period.
// This helps with GDPR data minimization and reduces storage usage.
// Aggregated analytics summaries are kept; only the raw event log shrinks.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.ConversationRetentionDays
	db := j.dbManager.GetConnection()
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old conversation messages",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	// Count messages to be deleted first
	var countToDelete int64
	if err := db.Model(&conversations.Conversation{}).
		Where("created_at < ?", cutoffDate).
		Count(&countToDelete).Error; err != nil {
		j.logger.Error("Failed to count old conversation messages", slog.Any("error", err))
		return err
	}

	if countToDelete == 0 {
		j.logger.Debug("No old conversation messages to clean up")
		return nil
	}

	// Delete in batches to avoid locking the database for too long
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("created_at < ?", cutoffDate).
			Limit(batchSize).
			Delete(&conversations.Conversation{})

		if result.Error != nil {
			j.logger.Error("Failed to delete old conversation messages",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	j.logger.Info("Cleaned up old conversation messages",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", retentionDays))

	return nil
}
