package repository

import (
	"context"
	"fmt"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	pkgch "MacroPulse/pkg/clickhouse"
	applogger "MacroPulse/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// ClickHouseSchema creates the market data table.
var ClickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS market_data (
        ticker String,
        date   DateTime,
        open   Nullable(Float64),
        high   Nullable(Float64),
        low    Nullable(Float64),
        close  Nullable(Float64),
        volume Nullable(Int64),
        sma_200 Nullable(Float64),
        rsi_14  Nullable(Float64),
        atr_14  Nullable(Float64),
        atr_z   Nullable(Float64),
        regime  Nullable(String)
    ) ENGINE = ReplacingMergeTree
    ORDER BY (ticker, date)`,
}

const marketColumns = "ticker, date, open, high, low, close, volume, sma_200, rsi_14, atr_14, atr_z, regime"

// CHDatasetStore implements DatasetStore backed by ClickHouse.
type CHDatasetStore struct {
	client  *pkgch.Client
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewCHDatasetStore(ch *pkgch.Client, timeout time.Duration) *CHDatasetStore {
	return &CHDatasetStore{client: ch, db: ch.DB(), timeout: timeout, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHDatasetStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// SaveMarketData drops the ticker's rows and inserts records in one batch.
func (s *CHDatasetStore) SaveMarketData(ctx context.Context, ticker string, records []models.MarketRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	// lightweight delete; visible to subsequent reads
	if _, err := s.db.ExecContext(ctx, "DELETE FROM market_data WHERE ticker = ?", ticker); err != nil {
		s.l.Error("clickhouse delete error", applogger.String("ticker", ticker), applogger.Error(err))
		return fmt.Errorf("delete market data: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, "INSERT INTO market_data ("+marketColumns+")")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			ticker, r.Date, r.Open, r.High, r.Low, r.Close, r.Volume,
			r.SMA200, r.RSI14, r.ATR14, r.ATRZ, r.Regime,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row %s: %w", r.Date.Format(time.DateOnly), err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse insert error", applogger.String("ticker", ticker), applogger.Error(err))
		return fmt.Errorf("send batch: %w", err)
	}

	s.l.Info("clickhouse save_market_data ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// GetMarketData returns the ticker's rows ordered by date.
func (s *CHDatasetStore) GetMarketData(ctx context.Context, ticker string) ([]models.MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.MarketRecord
	q := "SELECT " + marketColumns + " FROM market_data FINAL WHERE ticker = ? ORDER BY date ASC"
	if err := s.db.SelectContext(ctx, &out, q, ticker); err != nil {
		s.l.Error("clickhouse get_market_data error", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("get market data: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("market data %s: %w", ticker, domrepo.ErrNotFound)
	}
	return out, nil
}

func (s *CHDatasetStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHDatasetStore) Close() error {
	return s.client.Close()
}

var _ domrepo.DatasetStore = (*CHDatasetStore)(nil)
