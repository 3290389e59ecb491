package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// cycleTimeout bounds a whole scheduled cycle, both fetches and the inserts.
const cycleTimeout = 30 * time.Second

// Scheduler runs one sampling cycle at startup and then once a day at a fixed wall-clock time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *earwax.Service
	dailyAt   string
	logger    *zap.Logger
}

// New creates a new Scheduler. dailyAt is "HH:MM" in tz.
func New(dailyAt string, tz *time.Location, service *earwax.Service, logger *zap.Logger) *Scheduler {
	if tz == nil {
		tz = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(tz)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		dailyAt:   dailyAt,
		logger:    logger,
	}
}

// Start schedules the daily job, fires the startup cycle and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.dailyAt).Tag("daily-cycle").Do(s.run, "daily")
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	go s.run("startup")
	return nil
}

// NextRun reports when the daily job fires next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// run executes one cycle. Errors are logged only; the scheduler keeps going.
func (s *Scheduler) run(trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	s.logger.Info("scheduler: running sampling cycle", zap.String("trigger", trigger))

	res, err := s.service.RunCycle(ctx)
	if err != nil {
		s.logger.Error("scheduler: cycle failed",
			zap.String("trigger", trigger),
			zap.String("cycle", res.ID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("scheduler: cycle stored",
		zap.String("trigger", trigger),
		zap.String("cycle", res.ID),
		zap.Int("records", len(res.Records)),
		zap.Float64("earwax_percentage", res.Latest().EarwaxPercentage),
	)
}
