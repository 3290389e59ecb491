package earwax

import (
	"time"
)

// YesNo is the fixed two-valued flag stored with every observation.
type YesNo string

const (
	Yes YesNo = "Yes"
	No  YesNo = "No"
)

// Location is the single place we sample conditions for.
// City/Country feed the weather lookup, Lat/Lon the pollution lookup.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for this location, used in logs and cache keys.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Profile holds the per-deployment constants copied into every observation.
type Profile struct {
	Age          int
	Traveling    YesNo
	PollenSeason YesNo
}

// Observation is one ledger row. Field names on the wire match the ledger columns.
type Observation struct {
	ID               int64     `json:"id,omitempty"`
	Age              int       `json:"age"`
	Pollen           float64   `json:"pollen"`
	Dust             float64   `json:"dust"`
	Humidity         float64   `json:"humidity"`
	Temperature      float64   `json:"temperature"`
	Traveling        YesNo     `json:"traveling"`
	PollenSeason     YesNo     `json:"pollen_season"`
	EarwaxPercentage float64   `json:"earwax_percentage"`
	RecordedAt       time.Time `json:"date_recorded"`
}

// IsTerminal reports whether o is the boundary record written at saturation.
func (o Observation) IsTerminal() bool {
	return o.EarwaxPercentage >= SaturationLevel
}

// Readings are the environmental inputs of one cycle.
type Readings struct {
	Temperature float64
	Humidity    float64
	Pollen      float64
	Dust        float64
}

// CycleResult describes what a single orchestrator pass did.
type CycleResult struct {
	ID        string        `json:"id"`
	Previous  float64       `json:"previous"`
	Increment float64       `json:"increment"`
	Saturated bool          `json:"saturated"`
	Records   []Observation `json:"records"`
}

// Latest returns the last record written by the cycle.
func (r CycleResult) Latest() Observation {
	if len(r.Records) == 0 {
		return Observation{}
	}
	return r.Records[len(r.Records)-1]
}
