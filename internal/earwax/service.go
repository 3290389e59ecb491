package earwax

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultFetchTimeout = 10 * time.Second

// Service orchestrates sampling cycles: it reads the latest ledger value, fetches
// readings, advances the accumulation and appends the resulting records.
type Service struct {
	ledger    Ledger
	weather   WeatherSource
	pollution PollutionSource
	publisher Publisher

	location     Location
	profile      Profile
	fetchTimeout time.Duration
	tz           *time.Location
	now          func() time.Time
	logger       *zap.Logger

	// mu serializes cycles so two passes never compute from the same previous value.
	mu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified after each successful insert.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the wall clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeZone sets the zone records are stamped and reported in.
func WithTimeZone(tz *time.Location) Option {
	return func(s *Service) {
		if tz != nil {
			s.tz = tz
		}
	}
}

// WithFetchTimeout bounds each upstream call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// NewService creates a new Service.
func NewService(ledger Ledger, weather WeatherSource, pollution PollutionSource, loc Location, profile Profile, opts ...Option) *Service {
	s := &Service{
		ledger:       ledger,
		weather:      weather,
		pollution:    pollution,
		location:     loc,
		profile:      profile,
		fetchTimeout: defaultFetchTimeout,
		tz:           time.Local,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle performs one sampling pass. A fetch failure aborts the pass before
// anything is written. On saturation the terminal 100% record is inserted first,
// followed by the rolled-over record.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := CycleResult{ID: uuid.NewString()}
	log := s.logger.With(zap.String("cycle", res.ID), zap.String("location", s.location.Key()))

	res.Previous = s.previous(ctx, log)

	readings, err := s.fetchReadings(ctx)
	if err != nil {
		log.Warn("cycle aborted: no readings", zap.Error(err))
		return res, err
	}

	res.Increment = Increment(readings.Temperature, readings.Humidity, readings.Pollen, readings.Dust)
	next, saturated := Advance(res.Previous, readings.Temperature, readings.Humidity, readings.Pollen, readings.Dust)
	res.Saturated = saturated

	recordedAt := s.clock()
	primary := s.newObservation(readings, next, recordedAt)

	if saturated {
		terminal := s.newObservation(readings, SaturationLevel, recordedAt)
		if err := s.insert(ctx, &terminal); err != nil {
			log.Error("terminal record not stored", zap.Error(err))
			return res, err
		}
		res.Records = append(res.Records, terminal)
	}

	if err := s.insert(ctx, &primary); err != nil {
		log.Error("record not stored", zap.Error(err))
		s.publish(log, res.Records)
		return res, err
	}
	res.Records = append(res.Records, primary)
	s.publish(log, res.Records)

	log.Info("cycle completed",
		zap.Float64("previous", res.Previous),
		zap.Float64("increment", res.Increment),
		zap.Float64("earwax_percentage", primary.EarwaxPercentage),
		zap.Bool("saturated", saturated),
	)
	return res, nil
}

// Reset runs a cycle's read, fetch and compute steps for fresh readings, then
// stores a single record at 0% regardless of the computed value.
func (s *Service) Reset(ctx context.Context) (Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.With(zap.String("cycle", uuid.NewString()), zap.String("location", s.location.Key()))

	previous := s.previous(ctx, log)

	readings, err := s.fetchReadings(ctx)
	if err != nil {
		log.Warn("reset aborted: no readings", zap.Error(err))
		return Observation{}, err
	}

	computed, saturated := Advance(previous, readings.Temperature, readings.Humidity, readings.Pollen, readings.Dust)
	log.Debug("reset overrides computed value",
		zap.Float64("computed", computed),
		zap.Bool("saturated", saturated),
	)

	obs := s.newObservation(readings, 0.0, s.clock())
	if err := s.insert(ctx, &obs); err != nil {
		log.Error("reset record not stored", zap.Error(err))
		return Observation{}, err
	}
	s.publish(log, []Observation{obs})

	log.Info("accumulation reset")
	return obs, nil
}

// Latest returns the most recent observation. ok is false when the ledger is empty.
func (s *Service) Latest(ctx context.Context) (obs Observation, ok bool, err error) {
	obs, err = s.ledger.Latest(ctx)
	if errors.Is(err, ErrNoObservations) {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, fmt.Errorf("%w: read latest: %w", ErrStorageFailure, err)
	}
	return obs, true, nil
}

// Now returns the current time in the service's zone, at ledger precision.
func (s *Service) Now() time.Time {
	return s.clock()
}

// TimeZone returns the zone used for stamping and reporting.
func (s *Service) TimeZone() *time.Location {
	return s.tz
}

// previous reads the last stored percentage; an empty or unreadable ledger counts as 0.
func (s *Service) previous(ctx context.Context, log *zap.Logger) float64 {
	last, err := s.ledger.Latest(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoObservations) {
			log.Warn("previous value unavailable, starting from 0", zap.Error(err))
		}
		return 0.0
	}
	return last.EarwaxPercentage
}

// fetchReadings queries both sources concurrently; either failing fails the fetch.
func (s *Service) fetchReadings(ctx context.Context) (Readings, error) {
	if s.weather == nil || s.pollution == nil {
		return Readings{}, fmt.Errorf("%w: data sources not configured", ErrFetchFailure)
	}

	var (
		w WeatherReading
		p PollutionReading
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
		defer cancel()

		r, err := s.weather.FetchWeather(fctx, s.location)
		if err != nil {
			return fmt.Errorf("%w: weather from %s: %w", ErrFetchFailure, s.weather.Name(), err)
		}
		w = r
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
		defer cancel()

		r, err := s.pollution.FetchPollution(fctx, s.location)
		if err != nil {
			return fmt.Errorf("%w: pollution from %s: %w", ErrFetchFailure, s.pollution.Name(), err)
		}
		p = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return Readings{}, err
	}

	return Readings{
		Temperature: w.TemperatureC,
		Humidity:    w.HumidityPct,
		Pollen:      p.PM25,
		Dust:        p.PM10,
	}, nil
}

func (s *Service) newObservation(r Readings, percentage float64, recordedAt time.Time) Observation {
	return Observation{
		Age:              s.profile.Age,
		Pollen:           r.Pollen,
		Dust:             r.Dust,
		Humidity:         r.Humidity,
		Temperature:      round2(r.Temperature),
		Traveling:        s.profile.Traveling,
		PollenSeason:     s.profile.PollenSeason,
		EarwaxPercentage: storedPercentage(percentage),
		RecordedAt:       recordedAt,
	}
}

func (s *Service) insert(ctx context.Context, obs *Observation) error {
	if err := s.ledger.Insert(ctx, obs); err != nil {
		return fmt.Errorf("%w: insert: %w", ErrStorageFailure, err)
	}
	return nil
}

func (s *Service) publish(log *zap.Logger, records []Observation) {
	if s.publisher == nil {
		return
	}
	for _, obs := range records {
		if err := s.publisher.Publish(obs); err != nil {
			log.Warn("publish failed", zap.Int64("id", obs.ID), zap.Error(err))
		}
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.tz).Truncate(time.Second)
}
