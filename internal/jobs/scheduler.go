package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"profilehub/internal/config"
	"profilehub/internal/pkg/geoip"
	"profilehub/internal/profiles"
)

// scheduledJob is one recurring task.
type scheduledJob struct {
	name     string
	interval time.Duration
	run      func() error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Guards against overlapping runs of the same job
	processingMutex sync.Mutex
	processing      map[string]bool

	jobs    []scheduledJob
	tickers []*time.Ticker
	wg      sync.WaitGroup

	AuditCleanup   *AuditCleanupJob
	OrphanAvatars  *OrphanAvatarJob
	GeoLiteUpdater *GeoLiteUpdaterJob
}

// Deps are the collaborators the jobs act on.
type Deps struct {
	DB       *gorm.DB
	Profiles *profiles.Repository
	Avatars  AvatarFiles
	Geo      *geoip.Locator
}

func NewScheduler(cfg *config.Config, deps Deps, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		isRunning:  false,
		cfg:        cfg,
		processing: make(map[string]bool),
	}

	s.AuditCleanup = NewAuditCleanupJob(deps.DB, logger, cfg.AuditRetentionDays)
	s.OrphanAvatars = NewOrphanAvatarJob(ctx, deps.Profiles, deps.Avatars, logger)
	s.GeoLiteUpdater = NewGeoLiteUpdaterJob(cfg, deps.Geo, logger)

	s.jobs = append(s.jobs, scheduledJob{name: "audit_cleanup", interval: 24 * time.Hour, run: s.AuditCleanup.Run})
	if cfg.OrphanAvatarSweep {
		interval := time.Duration(cfg.JobIntervalSeconds) * time.Second
		s.jobs = append(s.jobs, scheduledJob{name: "orphan_avatars", interval: interval, run: s.OrphanAvatars.Run})
	}
	if cfg.GeoLiteConfigured() {
		s.jobs = append(s.jobs, scheduledJob{name: "geolite_updater", interval: 24 * time.Hour, run: s.GeoLiteUpdater.Run})
	}

	return s
}

// executeJobSafely runs a job unless its previous run is still executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.processing[jobName] {
		s.logger.Debug("Skipping job execution - previous run still in progress", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.processing[jobName] = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		delete(s.processing, jobName)
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	for _, job := range s.jobs {
		s.startJob(job)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) startJob(job scheduledJob) {
	s.logger.Info("Starting job", slog.String("job", job.name), slog.Duration("interval", job.interval))
	ticker := time.NewTicker(job.interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(job.name, job.run)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(job.name, job.run)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", job.name))
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, ticker := range s.tickers {
		ticker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
