package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/i474232898/earwax-monitoring/internal/config"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AppConfig
		want string
	}{
		{
			name: "unknown timezone",
			cfg:  config.AppConfig{Timezone: "Mars/Olympus", Store: config.StoreConfig{Driver: config.DriverMemory}},
			want: "invalid timezone",
		},
		{
			name: "unsupported ledger driver",
			cfg:  config.AppConfig{Timezone: "UTC", Store: config.StoreConfig{Driver: "oracle"}},
			want: "open ledger",
		},
		{
			name: "unknown data source",
			cfg: config.AppConfig{
				Timezone:        "UTC",
				Store:           config.StoreConfig{Driver: config.DriverMemory},
				WeatherProvider: "darksky",
			},
			want: "configure data sources",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := run(context.Background(), &cfg, zap.NewNop())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("run() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestRunClosesLedgerOnLaterFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earwax.db")
	cfg := config.AppConfig{
		Timezone:        "UTC",
		Store:           config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path},
		WeatherProvider: "darksky",
	}

	if err := run(context.Background(), &cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown weather provider")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("ledger was never opened: %v", err)
	}
	// Closing the last connection checkpoints and removes the WAL file.
	if _, err := os.Stat(path + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("WAL file still present after run returned (err=%v); ledger not closed", err)
	}
}
