package repository

import (
	"context"
	"fmt"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	applogger "MacroPulse/pkg/logger"
	pkgpg "MacroPulse/pkg/postgres"

	"github.com/jmoiron/sqlx"
)

// PostgresSchema creates the market data table.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS market_data (
		ticker  TEXT NOT NULL,
		date    TIMESTAMPTZ NOT NULL,
		open    DOUBLE PRECISION,
		high    DOUBLE PRECISION,
		low     DOUBLE PRECISION,
		close   DOUBLE PRECISION,
		volume  BIGINT,
		sma_200 DOUBLE PRECISION,
		rsi_14  DOUBLE PRECISION,
		atr_14  DOUBLE PRECISION,
		atr_z   DOUBLE PRECISION,
		regime  TEXT,
		PRIMARY KEY (ticker, date)
	)`,
}

// pgInsertChunk keeps a batch insert under the bind parameter limit.
const pgInsertChunk = 1000

const pgInsertMarket = `INSERT INTO market_data (` + marketColumns + `)
	VALUES (:ticker, :date, :open, :high, :low, :close, :volume, :sma_200, :rsi_14, :atr_14, :atr_z, :regime)`

// PGDatasetStore implements DatasetStore backed by PostgreSQL.
type PGDatasetStore struct {
	client  *pkgpg.Client
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewPGDatasetStore(pg *pkgpg.Client, timeout time.Duration) *PGDatasetStore {
	return &PGDatasetStore{client: pg, db: pg.DB(), timeout: timeout, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *PGDatasetStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// SaveMarketData replaces the ticker's rows inside one transaction.
func (s *PGDatasetStore) SaveMarketData(ctx context.Context, ticker string, records []models.MarketRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM market_data WHERE ticker = $1`, ticker); err != nil {
		return fmt.Errorf("delete market data: %w", err)
	}

	rows := make([]models.MarketRecord, len(records))
	for i, r := range records {
		r.Ticker = ticker
		rows[i] = r
	}
	for lo := 0; lo < len(rows); lo += pgInsertChunk {
		hi := min(lo+pgInsertChunk, len(rows))
		if _, err := tx.NamedExecContext(ctx, pgInsertMarket, rows[lo:hi]); err != nil {
			s.l.Error("postgres insert error", applogger.String("ticker", ticker), applogger.Error(err))
			return fmt.Errorf("insert market data: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.l.Info("postgres save_market_data ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// GetMarketData returns the ticker's rows ordered by date.
func (s *PGDatasetStore) GetMarketData(ctx context.Context, ticker string) ([]models.MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.MarketRecord
	q := `SELECT ` + marketColumns + ` FROM market_data WHERE ticker = $1 ORDER BY date ASC`
	if err := s.db.SelectContext(ctx, &out, q, ticker); err != nil {
		return nil, fmt.Errorf("get market data: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("market data %s: %w", ticker, domrepo.ErrNotFound)
	}
	return out, nil
}

func (s *PGDatasetStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *PGDatasetStore) Close() error {
	return s.client.Close()
}

var _ domrepo.DatasetStore = (*PGDatasetStore)(nil)
