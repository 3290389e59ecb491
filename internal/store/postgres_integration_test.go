//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/i474232898/earwax-monitoring/internal/config"
	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "earwax",
			"POSTGRES_PASSWORD": "earwax",
			"POSTGRES_DB":       "earwax_monitoring",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://earwax:earwax@%s:%s/earwax_monitoring?sslmode=disable", host, port.Port())
}

func TestPostgresLedger(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	ledger, closeFn, err := NewLedger(ctx, config.StoreConfig{Driver: config.DriverPostgres, DSN: dsn})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	defer func() { _ = closeFn() }()

	if _, err := ledger.Latest(ctx); err != earwax.ErrNoObservations {
		t.Fatalf("Latest on empty table: got %v", err)
	}

	at := time.Date(2026, 3, 14, 11, 27, 0, 0, time.UTC)
	terminal := sampleObservation(100, at)
	rollover := sampleObservation(0, at)
	for _, obs := range []*earwax.Observation{&terminal, &rollover} {
		if err := ledger.Insert(ctx, obs); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := ledger.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != rollover.ID || got.EarwaxPercentage != 0 {
		t.Fatalf("Latest = %+v, want rollover row", got)
	}
	if !got.RecordedAt.Equal(at) {
		t.Fatalf("RecordedAt = %v, want %v", got.RecordedAt, at)
	}
}
