package providers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// geocodeMu guards geocoder.ApiKey, which the library keeps as a package variable.
var geocodeMu sync.Mutex

// geocodeFunc is swapped in tests.
var geocodeFunc = func(apiKey string, addr geocoder.Address) (geocoder.Location, error) {
	geocodeMu.Lock()
	defer geocodeMu.Unlock()

	geocoder.ApiKey = apiKey
	return geocoder.Geocoding(addr)
}

// ResolveCoordinates fills in latitude/longitude for loc using Google geocoding.
// A location that already has coordinates is returned unchanged.
func ResolveCoordinates(loc earwax.Location, apiKey string) (earwax.Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}
	if apiKey == "" {
		return loc, fmt.Errorf("geocoder: %w", errMissingAPIKey)
	}
	if loc.City == "" {
		return loc, errors.New("geocoder: city is required")
	}

	found, err := geocodeFunc(apiKey, geocoder.Address{
		City:    loc.City,
		Country: loc.Country,
	})
	if err != nil {
		return loc, fmt.Errorf("geocode %s: %w", loc.Key(), err)
	}

	lat, lon := found.Latitude, found.Longitude
	loc.Lat = &lat
	loc.Lon = &lon
	return loc, nil
}
