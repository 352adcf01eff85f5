package engine_v1

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// BacktestState is the closed-trade ledger of one engine instance. Trades
// from every run land in one duckdb table keyed by run id, which makes
// post-run analysis a SQL query instead of report-file parsing.
type BacktestState struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewBacktestState opens the ledger database. An empty path keeps the
// ledger in memory.
func NewBacktestState(path string, log *logger.Logger) (*BacktestState, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open ledger database", err)
	}

	return &BacktestState{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the trades table.
func (b *BacktestState) Initialize() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			run_id TEXT,
			symbol TEXT,
			entry_time TIMESTAMP,
			entry_price DOUBLE,
			exit_time TIMESTAMP,
			exit_price DOUBLE,
			quantity DOUBLE,
			commission DOUBLE,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordTrade appends one closed position to the ledger.
func (b *BacktestState) RecordTrade(runID string, position types.Position) error {
	if position.IsOpen() {
		return errors.Newf(errors.ErrCodeLedgerWriteFailed, "cannot record open position for %s", position.Symbol)
	}

	_, err := b.sq.
		Insert("trades").
		Columns(
			"trade_id", "run_id", "symbol", "entry_time", "entry_price",
			"exit_time", "exit_price", "quantity", "commission", "pnl",
		).
		Values(
			uuid.New().String(), runID, position.Symbol, position.EntryTime, position.EntryPrice,
			*position.ExitTime, *position.ExitPrice, position.Quantity, position.Commission, position.PnL(),
		).
		RunWith(b.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to record trade for %s", position.Symbol)
	}

	return nil
}

// GetTrades returns every closed trade of one run in entry-time order.
func (b *BacktestState) GetTrades(runID string) ([]types.Position, error) {
	rows, err := b.sq.
		Select("symbol", "entry_time", "entry_price", "exit_time", "exit_price", "quantity", "commission").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("entry_time ASC", "symbol ASC").
		RunWith(b.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Position

	for rows.Next() {
		var (
			position  types.Position
			exitTime  time.Time
			exitPrice float64
		)

		if err := rows.Scan(
			&position.Symbol, &position.EntryTime, &position.EntryPrice,
			&exitTime, &exitPrice, &position.Quantity, &position.Commission,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade row", err)
		}

		position.Close(exitTime, exitPrice)
		trades = append(trades, position)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "trades query failed", err)
	}

	return trades, nil
}

// Cleanup closes the ledger database.
func (b *BacktestState) Cleanup() {
	if err := b.db.Close(); err != nil {
		b.log.Warn("Failed to close ledger database", zap.Error(err))
	}
}
