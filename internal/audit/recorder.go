package audit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/karloscodes/cartridge/sqlite"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"profilehub/internal/pkg/client"
)

// Entry is what callers hand to the Recorder.
type Entry struct {
	UserID    uint
	Action    Action
	UserAgent string
	IP        string
	Details   map[string]any
}

// FileOptions configures the rotating JSON-lines mirror of the trail.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Recorder writes audit events to the database and to a rotating log file.
// Recording never fails the calling operation; problems are only logged.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
	sink   *slog.Logger
	closer io.Closer
}

// NewRecorder creates a recorder. An empty opts.Path disables the file mirror.
func NewRecorder(db *gorm.DB, logger *slog.Logger, opts FileOptions) *Recorder {
	r := &Recorder{db: db, logger: logger}
	if opts.Path == "" {
		return r
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		logger.Warn("Audit log directory unavailable, file mirror disabled",
			slog.String("path", opts.Path), slog.Any("error", err))
		return r
	}
	writer := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	r.sink = slog.New(slog.NewJSONHandler(writer, nil))
	r.closer = writer
	return r
}

// Record stores one event.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	info := client.Parse(entry.UserAgent)
	event := Event{
		UserID:     entry.UserID,
		Action:     entry.Action,
		Platform:   string(info.Platform),
		ClientName: info.Name,
		IP:         entry.IP,
		Details:    entry.Details,
	}

	err := sqlite.PerformWrite(r.logger, r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(&event).Error
	})
	if err != nil {
		r.logger.Error("Failed to record audit event",
			slog.String("action", string(entry.Action)),
			slog.Uint64("userID", uint64(entry.UserID)),
			slog.Any("error", err))
	}

	if r.sink != nil {
		r.sink.Info("audit",
			slog.String("id", event.ID),
			slog.Uint64("user_id", uint64(event.UserID)),
			slog.String("action", string(event.Action)),
			slog.String("platform", event.Platform),
			slog.String("client", event.ClientName),
			slog.String("ip", event.IP),
			slog.Any("details", entry.Details),
			slog.Bool("persisted", err == nil))
	}
}

// Close flushes and closes the file mirror.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
