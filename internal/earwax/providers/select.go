package providers

import (
	"fmt"

	"github.com/i474232898/earwax-monitoring/internal/config"
	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// Select builds the weather and pollution sources named in cfg. Providers that
// serve both concerns are shared so they keep a single circuit breaker.
func Select(cfg *config.AppConfig, httpCfg HTTPClientConfig) (earwax.WeatherSource, earwax.PollutionSource, error) {
	var (
		openWeather *OpenWeatherProvider
		weatherAPI  *WeatherAPIProvider
	)
	getOpenWeather := func() *OpenWeatherProvider {
		if openWeather == nil {
			openWeather = NewOpenWeatherProvider(httpCfg, cfg.OpenWeatherAPIKey, cfg.OpenWeatherPollutionAPIKey)
		}
		return openWeather
	}
	getWeatherAPI := func() *WeatherAPIProvider {
		if weatherAPI == nil {
			weatherAPI = NewWeatherAPIProvider(httpCfg, cfg.WeatherAPIKey)
		}
		return weatherAPI
	}

	var ws earwax.WeatherSource
	switch cfg.WeatherProvider {
	case config.ProviderOpenWeather:
		ws = getOpenWeather()
	case config.ProviderWeatherAPI:
		ws = getWeatherAPI()
	default:
		return nil, nil, fmt.Errorf("unknown weather provider %q", cfg.WeatherProvider)
	}

	var ps earwax.PollutionSource
	switch cfg.PollutionProvider {
	case config.ProviderOpenWeather:
		ps = getOpenWeather()
	case config.ProviderWeatherAPI:
		ps = getWeatherAPI()
	case config.ProviderOpenMeteo:
		ps = NewOpenMeteoProvider(httpCfg)
	default:
		return nil, nil, fmt.Errorf("unknown pollution provider %q", cfg.PollutionProvider)
	}

	return ws, ps, nil
}
