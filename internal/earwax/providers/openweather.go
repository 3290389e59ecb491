package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// OpenWeatherProvider serves both current weather (by city) and air pollution
// (by coordinates) from OpenWeatherMap.
type OpenWeatherProvider struct {
	name         string
	weatherKey   string
	pollutionKey string
	weatherURL   string
	pollutionURL string
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

// NewOpenWeatherProvider returns a provider. pollutionKey may equal weatherKey.
func NewOpenWeatherProvider(httpCfg HTTPClientConfig, weatherKey, pollutionKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:         "openweathermap",
		weatherKey:   weatherKey,
		pollutionKey: pollutionKey,
		weatherURL:   "https://api.openweathermap.org/data/2.5/weather",
		pollutionURL: "https://api.openweathermap.org/data/2.5/air_pollution",
		httpCfg:      httpCfg,
		circuit:      newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) FetchWeather(ctx context.Context, loc earwax.Location) (earwax.WeatherReading, error) {
	if p.weatherKey == "" {
		return earwax.WeatherReading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.weatherKey)
	values.Set("units", "metric")
	q := loc.City
	if loc.Country != "" {
		q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
	}
	values.Set("q", q)

	var payload struct {
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.weatherURL+"?"+values.Encode(), &payload); err != nil {
		return earwax.WeatherReading{}, err
	}
	if payload.Main.Temp == nil || payload.Main.Humidity == nil {
		return earwax.WeatherReading{}, fmt.Errorf("openweather weather: %w", errEmptyPayload)
	}

	return earwax.WeatherReading{
		ProviderName: p.name,
		TemperatureC: *payload.Main.Temp,
		HumidityPct:  *payload.Main.Humidity,
	}, nil
}

func (p *OpenWeatherProvider) FetchPollution(ctx context.Context, loc earwax.Location) (earwax.PollutionReading, error) {
	if p.pollutionKey == "" {
		return earwax.PollutionReading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}
	if !loc.HasCoordinates() {
		return earwax.PollutionReading{}, fmt.Errorf("openweather pollution: %w", errNoCoordinates)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	values.Set("appid", p.pollutionKey)

	var payload struct {
		List []struct {
			Components struct {
				PM25 *float64 `json:"pm2_5"`
				PM10 *float64 `json:"pm10"`
			} `json:"components"`
		} `json:"list"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.pollutionURL+"?"+values.Encode(), &payload); err != nil {
		return earwax.PollutionReading{}, err
	}
	if len(payload.List) == 0 || payload.List[0].Components.PM25 == nil || payload.List[0].Components.PM10 == nil {
		return earwax.PollutionReading{}, fmt.Errorf("openweather pollution: %w", errEmptyPayload)
	}

	c := payload.List[0].Components
	return checkPollution(earwax.PollutionReading{
		ProviderName: p.name,
		PM25:         *c.PM25,
		PM10:         *c.PM10,
	})
}
