package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
	"github.com/i474232898/earwax-monitoring/internal/store"
)

type stubWeather struct {
	reading earwax.WeatherReading
	err     error
}

func (stubWeather) Name() string { return "stub-weather" }

func (s stubWeather) FetchWeather(context.Context, earwax.Location) (earwax.WeatherReading, error) {
	return s.reading, s.err
}

type stubPollution struct {
	reading earwax.PollutionReading
	err     error
}

func (stubPollution) Name() string { return "stub-pollution" }

func (s stubPollution) FetchPollution(context.Context, earwax.Location) (earwax.PollutionReading, error) {
	return s.reading, s.err
}

type brokenLedger struct{}

func (brokenLedger) Insert(context.Context, *earwax.Observation) error {
	return errors.New("connection refused")
}

func (brokenLedger) Latest(context.Context) (earwax.Observation, error) {
	return earwax.Observation{}, errors.New("connection refused")
}

var (
	ist      = time.FixedZone("IST", 5*3600+1800)
	fixedNow = time.Date(2026, 3, 14, 11, 27, 9, 0, ist)
)

func referenceWeather() stubWeather {
	return stubWeather{reading: earwax.WeatherReading{TemperatureC: 25, HumidityPct: 50}}
}

func referencePollution() stubPollution {
	return stubPollution{reading: earwax.PollutionReading{PM25: 25, PM10: 25}}
}

func newTestApp(t *testing.T, ledger earwax.Ledger, w earwax.WeatherSource, p earwax.PollutionSource) *fiber.App {
	t.Helper()
	svc := earwax.NewService(ledger, w, p,
		earwax.Location{City: "Chennai", Country: "IN"},
		earwax.Profile{Age: 25, Traveling: earwax.Yes, PollenSeason: earwax.No},
		earwax.WithClock(func() time.Time { return fixedNow }),
		earwax.WithTimeZone(ist),
	)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return resp.StatusCode, out
}

func TestGetEarwaxLevelEmptyLedger(t *testing.T) {
	app := newTestApp(t, store.NewMemoryLedger(), referenceWeather(), referencePollution())

	status, body := doJSON(t, app, http.MethodGet, "/get_earwax_level")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["earwax_percentage"] != 0.0 {
		t.Errorf("earwax_percentage = %v, want 0", body["earwax_percentage"])
	}
	if body["last_updated"] != "2026-03-14 11:27:09" {
		t.Errorf("last_updated = %v", body["last_updated"])
	}
}

func TestGetEarwaxLevelIsIdempotent(t *testing.T) {
	ledger := store.NewMemoryLedger()
	obs := earwax.Observation{EarwaxPercentage: 37.5, RecordedAt: time.Date(2026, 3, 13, 5, 57, 0, 0, time.UTC)}
	if err := ledger.Insert(context.Background(), &obs); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	app := newTestApp(t, ledger, referenceWeather(), referencePollution())

	_, first := doJSON(t, app, http.MethodGet, "/get_earwax_level")
	_, second := doJSON(t, app, http.MethodGet, "/get_earwax_level")

	if first["earwax_percentage"] != 37.5 || first["last_updated"] != "2026-03-13 11:27:00" {
		t.Fatalf("first = %v", first)
	}
	if first["earwax_percentage"] != second["earwax_percentage"] || first["last_updated"] != second["last_updated"] {
		t.Fatalf("responses differ: %v vs %v", first, second)
	}
	if n := len(ledger.All()); n != 1 {
		t.Fatalf("query wrote rows: %d", n)
	}
}

func TestGetEarwaxLevelStorageFailure(t *testing.T) {
	app := newTestApp(t, brokenLedger{}, referenceWeather(), referencePollution())

	status, body := doJSON(t, app, http.MethodGet, "/get_earwax_level")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Fatalf("missing error message: %v", body)
	}
}

func TestResetEarwax(t *testing.T) {
	ledger := store.NewMemoryLedger()
	prev := earwax.Observation{EarwaxPercentage: 97, RecordedAt: fixedNow.Add(-24 * time.Hour)}
	_ = ledger.Insert(context.Background(), &prev)
	app := newTestApp(t, ledger, referenceWeather(), referencePollution())

	status, body := doJSON(t, app, http.MethodGet, "/reset_earwax")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", status, body)
	}
	if body["message"] != "Reset successful" || body["earwax_percentage"] != 0.0 {
		t.Fatalf("body = %v", body)
	}

	rows := ledger.All()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[1].EarwaxPercentage != 0 || rows[1].Temperature != 25 {
		t.Fatalf("reset row = %+v", rows[1])
	}

	_, level := doJSON(t, app, http.MethodGet, "/get_earwax_level")
	if level["earwax_percentage"] != 0.0 {
		t.Fatalf("level after reset = %v", level)
	}
}

func TestResetEarwaxFetchFailure(t *testing.T) {
	ledger := store.NewMemoryLedger()
	app := newTestApp(t, ledger, referenceWeather(), stubPollution{err: context.DeadlineExceeded})

	status, body := doJSON(t, app, http.MethodGet, "/reset_earwax")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("body = %v", body)
	}
	if n := len(ledger.All()); n != 0 {
		t.Fatalf("failed reset wrote %d rows", n)
	}
}

func TestResetEarwaxStorageFailure(t *testing.T) {
	app := newTestApp(t, brokenLedger{}, referenceWeather(), referencePollution())

	status, _ := doJSON(t, app, http.MethodGet, "/reset_earwax")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
}

func TestLatestObservationEndpoint(t *testing.T) {
	ledger := store.NewMemoryLedger()
	app := newTestApp(t, ledger, referenceWeather(), referencePollution())

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/earwax/latest")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if body["error"] != "no observations recorded yet" {
		t.Fatalf("body = %v", body)
	}

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/earwax/cycle")
	if status != http.StatusOK {
		t.Fatalf("cycle status = %d (%v)", status, body)
	}

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/earwax/latest")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["earwax_percentage"] != 5.0 || body["traveling"] != "Yes" || body["pollen_season"] != "No" {
		t.Fatalf("body = %v", body)
	}
}

func TestCycleEndpointSaturation(t *testing.T) {
	ledger := store.NewMemoryLedger()
	prev := earwax.Observation{EarwaxPercentage: 97, RecordedAt: fixedNow.Add(-24 * time.Hour)}
	_ = ledger.Insert(context.Background(), &prev)
	app := newTestApp(t, ledger, referenceWeather(), referencePollution())

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/earwax/cycle")
	if status != http.StatusOK {
		t.Fatalf("status = %d (%v)", status, body)
	}
	if body["saturated"] != true {
		t.Fatalf("body = %v", body)
	}
	records, _ := body["records"].([]interface{})
	if len(records) != 2 {
		t.Fatalf("records = %v", body["records"])
	}

	_, level := doJSON(t, app, http.MethodGet, "/get_earwax_level")
	if level["earwax_percentage"] != 0.0 {
		t.Fatalf("latest after saturation = %v, want rollover 0", level)
	}
}

func TestCycleEndpointFetchFailure(t *testing.T) {
	app := newTestApp(t, store.NewMemoryLedger(), stubWeather{err: errors.New("503")}, referencePollution())

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/earwax/cycle")
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", status)
	}
}
