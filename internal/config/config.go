package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

const configFileEnv = "CONFIG_FILE"

// Supported provider names.
const (
	ProviderOpenWeather = "openweather"
	ProviderWeatherAPI  = "weatherapi"
	ProviderOpenMeteo   = "openmeteo"
)

// Supported ledger drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type AppConfig struct {
	Port     string `yaml:"port" validate:"required,numeric"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	OpenWeatherAPIKey          string `yaml:"openweather_api_key" validate:"required_if=WeatherProvider openweather"`
	OpenWeatherPollutionAPIKey string `yaml:"openweather_pollution_api_key" validate:"required_if=PollutionProvider openweather"`
	WeatherAPIKey              string `yaml:"weatherapi_api_key"`
	GeocoderAPIKey             string `yaml:"geocoder_api_key"`

	WeatherProvider   string `yaml:"weather_provider" validate:"oneof=openweather weatherapi"`
	PollutionProvider string `yaml:"pollution_provider" validate:"oneof=openweather weatherapi openmeteo"`

	Location LocationConfig `yaml:"location"`
	Profile  ProfileConfig  `yaml:"profile"`

	// FetchTimeout bounds each upstream call.
	FetchTimeout    time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	FetchMaxRetries int           `yaml:"fetch_max_retries" validate:"gte=0,lte=5"`

	// DailyAt is the local wall-clock time of the daily cycle, HH:MM.
	DailyAt  string `yaml:"daily_at" validate:"required,datetime=15:04"`
	Timezone string `yaml:"timezone" validate:"required"`

	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

type LocationConfig struct {
	City    string   `yaml:"city" validate:"required"`
	Country string   `yaml:"country"`
	Lat     *float64 `yaml:"lat" validate:"omitempty,latitude"`
	Lon     *float64 `yaml:"lon" validate:"omitempty,longitude"`
}

type ProfileConfig struct {
	Age          int    `yaml:"age" validate:"gte=0,lte=150"`
	Traveling    string `yaml:"traveling" validate:"oneof=Yes No"`
	PollenSeason string `yaml:"pollen_season" validate:"oneof=Yes No"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver" validate:"oneof=memory sqlite3 pgx"`
	DSN        string `yaml:"dsn" validate:"required_if=Driver pgx"`
	SQLitePath string `yaml:"sqlite_path"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	TTL           time.Duration `yaml:"ttl" validate:"gte=0"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic" validate:"required_with=Broker"`
	ClientID string `yaml:"client_id"`
}

// Load reads configuration from an optional YAML file and the environment,
// with environment values taking precedence over the file and defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := defaults()

	if path := os.Getenv(configFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *AppConfig {
	lat, lon := 13.0827, 80.2707
	return &AppConfig{
		Port:              "5000",
		LogLevel:          "info",
		WeatherProvider:   ProviderOpenWeather,
		PollutionProvider: ProviderOpenWeather,
		Location: LocationConfig{
			City:    "Chennai",
			Country: "IN",
			Lat:     &lat,
			Lon:     &lon,
		},
		Profile: ProfileConfig{
			Age:          25,
			Traveling:    string(earwax.Yes),
			PollenSeason: string(earwax.No),
		},
		FetchTimeout: 10 * time.Second,
		DailyAt:      "11:27",
		Timezone:     "Local",
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/earwax.db",
		},
		Cache: CacheConfig{TTL: time.Minute},
		MQTT: MQTTConfig{
			Topic:    "earwax/observations",
			ClientID: "earwax-monitoring",
		},
	}
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.LogLevel))

	cfg.OpenWeatherAPIKey = getenvDefault("OPENWEATHER_API_KEY", cfg.OpenWeatherAPIKey)
	// The pollution endpoint accepts the same key unless a dedicated one is set.
	cfg.OpenWeatherPollutionAPIKey = getenvDefault("OPENWEATHER_POLLUTION_API_KEY", cfg.OpenWeatherPollutionAPIKey)
	if cfg.OpenWeatherPollutionAPIKey == "" {
		cfg.OpenWeatherPollutionAPIKey = cfg.OpenWeatherAPIKey
	}
	cfg.WeatherAPIKey = getenvDefault("WEATHERAPI_API_KEY", cfg.WeatherAPIKey)
	cfg.GeocoderAPIKey = getenvDefault("GEOCODER_API_KEY", cfg.GeocoderAPIKey)

	cfg.WeatherProvider = getenvDefault("WEATHER_PROVIDER", cfg.WeatherProvider)
	cfg.PollutionProvider = getenvDefault("POLLUTION_PROVIDER", cfg.PollutionProvider)

	// A city override without coordinates drops the default coordinates so they are geocoded.
	if city := os.Getenv("LOCATION_CITY"); city != "" && city != cfg.Location.City {
		cfg.Location.City = city
		cfg.Location.Lat, cfg.Location.Lon = nil, nil
	}
	cfg.Location.Country = getenvDefault("LOCATION_COUNTRY", cfg.Location.Country)
	lat, err := getenvFloat("LOCATION_LAT", cfg.Location.Lat)
	if err != nil {
		return err
	}
	lon, err := getenvFloat("LOCATION_LON", cfg.Location.Lon)
	if err != nil {
		return err
	}
	cfg.Location.Lat, cfg.Location.Lon = lat, lon

	cfg.Profile.Age = getenvInt("PROFILE_AGE", cfg.Profile.Age)
	cfg.Profile.Traveling = getenvDefault("PROFILE_TRAVELING", cfg.Profile.Traveling)
	cfg.Profile.PollenSeason = getenvDefault("PROFILE_POLLEN_SEASON", cfg.Profile.PollenSeason)

	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return err
	}
	cfg.FetchMaxRetries = getenvInt("FETCH_MAX_RETRIES", cfg.FetchMaxRetries)

	cfg.DailyAt = getenvDefault("DAILY_AT", cfg.DailyAt)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)

	cfg.Store.Driver = getenvDefault("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getenvDefault("STORE_DSN", cfg.Store.DSN)
	cfg.Store.SQLitePath = getenvDefault("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Cache.RedisAddr = getenvDefault("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getenvDefault("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	if cfg.Cache.TTL, err = getenvDuration("CACHE_TTL", cfg.Cache.TTL); err != nil {
		return err
	}

	cfg.MQTT.Broker = getenvDefault("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Topic = getenvDefault("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.ClientID = getenvDefault("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules validator tags cannot express.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.WeatherProvider == ProviderWeatherAPI || c.PollutionProvider == ProviderWeatherAPI {
		if c.WeatherAPIKey == "" {
			return fmt.Errorf("invalid config: WEATHERAPI_API_KEY is required for the weatherapi provider")
		}
	}
	if (c.Location.Lat == nil) != (c.Location.Lon == nil) {
		return fmt.Errorf("invalid config: LOCATION_LAT and LOCATION_LON must be set together")
	}
	if !c.Location.hasCoordinates() && c.PollutionProvider != ProviderWeatherAPI && c.GeocoderAPIKey == "" {
		return fmt.Errorf("invalid config: coordinates or GEOCODER_API_KEY required for %s pollution data", c.PollutionProvider)
	}
	if _, err := c.TimeZone(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TimeZone resolves the configured zone name.
func (c *AppConfig) TimeZone() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// EarwaxLocation converts the location section to the domain type.
func (c *AppConfig) EarwaxLocation() earwax.Location {
	return earwax.Location{
		City:    c.Location.City,
		Country: c.Location.Country,
		Lat:     c.Location.Lat,
		Lon:     c.Location.Lon,
	}
}

// EarwaxProfile converts the profile section to the domain type.
func (c *AppConfig) EarwaxProfile() earwax.Profile {
	return earwax.Profile{
		Age:          c.Profile.Age,
		Traveling:    earwax.YesNo(c.Profile.Traveling),
		PollenSeason: earwax.YesNo(c.Profile.PollenSeason),
	}
}

func (l LocationConfig) hasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def *float64) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}
