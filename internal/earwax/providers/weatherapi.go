package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// WeatherAPIProvider reads current conditions and air quality from WeatherAPI.com.
// One request (aqi=yes) carries both, so it can serve as either data source.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(httpCfg HTTPClientConfig, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: httpCfg,
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICurrent struct {
	Current struct {
		TempC      *float64 `json:"temp_c"`
		Humidity   *float64 `json:"humidity"`
		AirQuality *struct {
			PM25 *float64 `json:"pm2_5"`
			PM10 *float64 `json:"pm10"`
		} `json:"air_quality"`
	} `json:"current"`
}

func (p *WeatherAPIProvider) fetch(ctx context.Context, loc earwax.Location) (weatherAPICurrent, error) {
	var payload weatherAPICurrent
	if p.apiKey == "" {
		return payload, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("aqi", "yes")
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if loc.HasCoordinates() {
		values.Set("q", strconv.FormatFloat(*loc.Lat, 'f', -1, 64)+","+strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload)
	return payload, err
}

func (p *WeatherAPIProvider) FetchWeather(ctx context.Context, loc earwax.Location) (earwax.WeatherReading, error) {
	payload, err := p.fetch(ctx, loc)
	if err != nil {
		return earwax.WeatherReading{}, err
	}
	if payload.Current.TempC == nil || payload.Current.Humidity == nil {
		return earwax.WeatherReading{}, fmt.Errorf("weatherapi weather: %w", errEmptyPayload)
	}

	return earwax.WeatherReading{
		ProviderName: p.name,
		TemperatureC: *payload.Current.TempC,
		HumidityPct:  *payload.Current.Humidity,
	}, nil
}

func (p *WeatherAPIProvider) FetchPollution(ctx context.Context, loc earwax.Location) (earwax.PollutionReading, error) {
	payload, err := p.fetch(ctx, loc)
	if err != nil {
		return earwax.PollutionReading{}, err
	}
	aq := payload.Current.AirQuality
	if aq == nil || aq.PM25 == nil || aq.PM10 == nil {
		return earwax.PollutionReading{}, fmt.Errorf("weatherapi air quality: %w", errEmptyPayload)
	}

	return checkPollution(earwax.PollutionReading{
		ProviderName: p.name,
		PM25:         *aq.PM25,
		PM10:         *aq.PM10,
	})
}
