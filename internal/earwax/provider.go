package earwax

import (
	"context"
	"errors"
)

var (
	// ErrFetchFailure marks an upstream data source failure: unreachable, timeout,
	// bad status or unusable payload.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrStorageFailure marks a ledger read or write failure.
	ErrStorageFailure = errors.New("storage failure")
	// ErrNoObservations is returned by a Ledger that has no rows yet.
	ErrNoObservations = errors.New("no observations recorded")
)

// WeatherReading is a normalized temperature/humidity reading.
type WeatherReading struct {
	ProviderName string
	TemperatureC float64
	HumidityPct  float64
}

// PollutionReading is a normalized particulate reading. PM25 is stored as pollen, PM10 as dust.
type PollutionReading struct {
	ProviderName string
	PM25         float64 `validate:"gte=0"`
	PM10         float64 `validate:"gte=0"`
}

// WeatherSource fetches current weather for a location.
type WeatherSource interface {
	Name() string
	FetchWeather(ctx context.Context, loc Location) (WeatherReading, error)
}

// PollutionSource fetches current particulate concentrations for a location.
type PollutionSource interface {
	Name() string
	FetchPollution(ctx context.Context, loc Location) (PollutionReading, error)
}

// Ledger is the append-only observation store the orchestrator depends on.
// Latest returns ErrNoObservations when the ledger is empty.
type Ledger interface {
	Insert(ctx context.Context, obs *Observation) error
	Latest(ctx context.Context) (Observation, error)
}

// Publisher fans persisted observations out to subscribers. Failures never affect the ledger.
type Publisher interface {
	Publish(obs Observation) error
}
