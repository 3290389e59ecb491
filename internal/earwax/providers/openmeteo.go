package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// OpenMeteoProvider reads particulate levels from the keyless Open-Meteo air-quality API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(httpCfg HTTPClientConfig) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		httpCfg: httpCfg,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchPollution(ctx context.Context, loc earwax.Location) (earwax.PollutionReading, error) {
	if !loc.HasCoordinates() {
		return earwax.PollutionReading{}, fmt.Errorf("openmeteo requires latitude and longitude: %w", errNoCoordinates)
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	values.Set("current", "pm10,pm2_5")

	var payload struct {
		Current struct {
			PM10 *float64 `json:"pm10"`
			PM25 *float64 `json:"pm2_5"`
		} `json:"current"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return earwax.PollutionReading{}, err
	}
	// Open-Meteo reports null for cells without model coverage.
	if payload.Current.PM25 == nil || payload.Current.PM10 == nil {
		return earwax.PollutionReading{}, fmt.Errorf("openmeteo air quality: %w", errEmptyPayload)
	}

	return checkPollution(earwax.PollutionReading{
		ProviderName: p.name,
		PM25:         *payload.Current.PM25,
		PM10:         *payload.Current.PM10,
	})
}
