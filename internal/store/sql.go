package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/i474232898/earwax-monitoring/internal/config"
	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS earwax_data (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		age               INTEGER  NOT NULL,
		pollen            REAL     NOT NULL,
		dust              REAL     NOT NULL,
		humidity          REAL     NOT NULL,
		temperature       REAL     NOT NULL,
		traveling         TEXT     NOT NULL CHECK (traveling IN ('Yes', 'No')),
		pollen_season     TEXT     NOT NULL CHECK (pollen_season IN ('Yes', 'No')),
		earwax_percentage REAL     NOT NULL,
		date_recorded     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_earwax_data_date_recorded ON earwax_data(date_recorded)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS earwax_data (
		id                BIGSERIAL PRIMARY KEY,
		age               INTEGER          NOT NULL,
		pollen            DOUBLE PRECISION NOT NULL,
		dust              DOUBLE PRECISION NOT NULL,
		humidity          DOUBLE PRECISION NOT NULL,
		temperature       DOUBLE PRECISION NOT NULL,
		traveling         VARCHAR(10)      NOT NULL CHECK (traveling IN ('Yes', 'No')),
		pollen_season     VARCHAR(10)      NOT NULL CHECK (pollen_season IN ('Yes', 'No')),
		earwax_percentage DOUBLE PRECISION NOT NULL,
		date_recorded     TIMESTAMPTZ      NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_earwax_data_date_recorded ON earwax_data(date_recorded)`,
}

const insertObservationSQL = `
	INSERT INTO earwax_data
		(age, pollen, dust, humidity, temperature, traveling, pollen_season, earwax_percentage, date_recorded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
`

const latestObservationSQL = `
	SELECT id, age, pollen, dust, humidity, temperature, traveling, pollen_season, earwax_percentage, date_recorded
	FROM earwax_data
	ORDER BY date_recorded DESC, id DESC
	LIMIT 1
`

// SQLLedger persists observations in the earwax_data table.
// Timestamps are written in UTC so both dialects order them correctly.
type SQLLedger struct {
	db     *sql.DB
	driver string
}

// NewSQLLedger returns a ledger over db. driver selects the placeholder and DDL dialect.
func NewSQLLedger(db *sql.DB, driver string) *SQLLedger {
	return &SQLLedger{db: db, driver: driver}
}

// EnsureSchema creates the table and index when missing.
func (l *SQLLedger) EnsureSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if l.driver == config.DriverPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert stores a new observation and sets its ID.
func (l *SQLLedger) Insert(ctx context.Context, obs *earwax.Observation) error {
	err := l.db.QueryRowContext(ctx, l.rebind(insertObservationSQL),
		obs.Age,
		obs.Pollen,
		obs.Dust,
		obs.Humidity,
		obs.Temperature,
		string(obs.Traveling),
		string(obs.PollenSeason),
		obs.EarwaxPercentage,
		obs.RecordedAt.UTC(),
	).Scan(&obs.ID)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// Latest returns the most recent observation; equal timestamps resolve to the higher id.
func (l *SQLLedger) Latest(ctx context.Context) (earwax.Observation, error) {
	var (
		obs                     earwax.Observation
		traveling, pollenSeason string
	)
	err := l.db.QueryRowContext(ctx, latestObservationSQL).Scan(
		&obs.ID,
		&obs.Age,
		&obs.Pollen,
		&obs.Dust,
		&obs.Humidity,
		&obs.Temperature,
		&traveling,
		&pollenSeason,
		&obs.EarwaxPercentage,
		&obs.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return earwax.Observation{}, earwax.ErrNoObservations
	}
	if err != nil {
		return earwax.Observation{}, fmt.Errorf("latest observation: %w", err)
	}

	obs.Traveling = earwax.YesNo(traveling)
	obs.PollenSeason = earwax.YesNo(pollenSeason)
	return obs, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (l *SQLLedger) rebind(query string) string {
	if l.driver != config.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
