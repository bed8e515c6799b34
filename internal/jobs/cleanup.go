package jobs

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"profilehub/internal/audit"
)

// AuditCleanupJob removes audit events past the retention period.
type AuditCleanupJob struct {
	db            *gorm.DB
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

func NewAuditCleanupJob(db *gorm.DB, logger *slog.Logger, retentionDays int) *AuditCleanupJob {
	return &AuditCleanupJob{
		db:            db,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run deletes audit events older than the retention period. A non-positive
// retention keeps the trail forever.
func (j *AuditCleanupJob) Run() error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Audit retention disabled, skipping cleanup")
		return nil
	}
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting cleanup of old audit events",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := audit.Cleanup(j.db, cutoff)
	if err != nil {
		j.logger.Error("Failed to delete old audit events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	j.logger.Info("Cleaned up old audit events",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.retentionDays))
	return nil
}
