package market

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// DuckDBProvider serves market data out of DuckDB views created over
// parquet or csv files. DuckDB reads columnar files in place, so loading a
// dataset is just pointing a view at the file.
type DuckDBProvider struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// DuckDBConfig locates the dataset files backing the provider.
type DuckDBConfig struct {
	// DatabasePath is the DuckDB database file; empty means in-memory.
	DatabasePath string `yaml:"database_path" json:"database_path"`
	// PriceBarsPath is a parquet or csv file with columns
	// symbol, time, open, high, low, close, volume.
	PriceBarsPath string `yaml:"price_bars_path" json:"price_bars_path" validate:"required"`
	// InstrumentsPath is a parquet or csv file with columns
	// symbol, name, market, exchange, industry.
	InstrumentsPath string `yaml:"instruments_path" json:"instruments_path" validate:"required"`
	// FundamentalsPath is a parquet or csv file with one row per symbol and
	// snapshot date, carrying the fundamental field columns.
	FundamentalsPath string `yaml:"fundamentals_path" json:"fundamentals_path"`
}

// fundamentalNumericColumns are the numeric snapshot columns read from the
// fundamentals file, matching the fundamental field vocabulary.
var fundamentalNumericColumns = []string{
	"pe_ratio", "pb_ratio", "total_mv", "turnover_rate", "dividend_yield", "moneyflow_net",
}

// NewDuckDBProvider opens the database and creates views over the dataset
// files.
func NewDuckDBProvider(config DuckDBConfig, log *logger.Logger) (*DuckDBProvider, error) {
	db, err := sql.Open("duckdb", config.DatabasePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	p := &DuckDBProvider{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := p.initialize(config); err != nil {
		db.Close()

		return nil, err
	}

	return p, nil
}

func (p *DuckDBProvider) initialize(config DuckDBConfig) error {
	p.log.Debug("Initializing duckdb views",
		zap.String("price_bars", config.PriceBarsPath),
		zap.String("instruments", config.InstrumentsPath),
		zap.String("fundamentals", config.FundamentalsPath),
	)

	if err := p.createView("price_bars", config.PriceBarsPath); err != nil {
		return err
	}

	if err := p.createView("instruments", config.InstrumentsPath); err != nil {
		return err
	}

	if config.FundamentalsPath != "" {
		if err := p.createView("fundamentals", config.FundamentalsPath); err != nil {
			return err
		}
	}

	return nil
}

// createView points a view at a dataset file. Squirrel does not support
// CREATE VIEW, so this is raw SQL; the path comes from operator
// configuration, not user input.
func (p *DuckDBProvider) createView(name, path string) error {
	if _, err := p.db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", name)); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to drop view %s", name)
	}

	reader := "read_parquet"
	if strings.HasSuffix(path, ".csv") {
		reader = "read_csv_auto"
	}

	query := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s('%s')", name, reader, path)
	if _, err := p.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to create view %s over %s", name, path)
	}

	return nil
}

// Name implements the Provider interface.
func (p *DuckDBProvider) Name() string {
	return "duckdb"
}

// ListInstruments implements the Provider interface.
func (p *DuckDBProvider) ListInstruments(ctx context.Context) ([]Instrument, error) {
	query, args, err := p.sq.
		Select("symbol", "name", "market", "exchange", "industry").
		From("instruments").
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build instruments query", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query instruments", err)
	}
	defer rows.Close()

	var out []Instrument

	for rows.Next() {
		var inst Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.Market, &inst.Exchange, &inst.Industry); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan instrument row", err)
		}

		out = append(out, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "instruments query failed", err)
	}

	return out, nil
}

// GetPriceBars implements the Provider interface.
func (p *DuckDBProvider) GetPriceBars(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	query, args, err := p.sq.
		Select("symbol", "time", "open", "high", "low", "close", "volume").
		From("price_bars").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.GtOrEq{"time": start}).
		Where(squirrel.LtOrEq{"time": end}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price bars query", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query price bars for %s", symbol)
	}
	defer rows.Close()

	var bars []types.PriceBar

	for rows.Next() {
		var bar types.PriceBar
		if err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan price bar row", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "price bars query failed for %s", symbol)
	}

	if !types.ValidateBarOrder(bars) {
		return nil, errors.Newf(errors.ErrCodeQueryFailed, "price bars for %s are not strictly ascending by time", symbol)
	}

	return bars, nil
}

// GetFundamentalSnapshot implements the Provider interface. It returns the
// latest snapshot row at or before asOf, joined with the instrument's text
// attributes.
func (p *DuckDBProvider) GetFundamentalSnapshot(ctx context.Context, symbol string, asOf time.Time) (map[string]types.FieldValue, error) {
	out := make(map[string]types.FieldValue)

	instQuery, instArgs, err := p.sq.
		Select("market", "exchange", "industry").
		From("instruments").
		Where(squirrel.Eq{"symbol": symbol}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build instrument lookup", err)
	}

	var marketName, exchange, industry string

	err = p.db.QueryRowContext(ctx, instQuery, instArgs...).Scan(&marketName, &exchange, &industry)
	switch {
	case err == sql.ErrNoRows:
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "instrument %s not found", symbol)
	case err != nil:
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to look up instrument %s", symbol)
	}

	out["market"] = types.TextValue(marketName)
	out["exchange"] = types.TextValue(exchange)
	out["industry"] = types.TextValue(industry)

	query, args, err := p.sq.
		Select(fundamentalNumericColumns...).
		From("fundamentals").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.LtOrEq{"time": asOf}).
		OrderBy("time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build fundamentals query", err)
	}

	values := make([]sql.NullFloat64, len(fundamentalNumericColumns))
	dests := make([]any, len(values))

	for i := range values {
		dests[i] = &values[i]
	}

	err = p.db.QueryRowContext(ctx, query, args...).Scan(dests...)
	switch {
	case err == sql.ErrNoRows:
		// No snapshot at or before asOf; text attributes alone are a valid
		// answer and numeric lookups will fail per field.
		return out, nil
	case err != nil:
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query fundamentals for %s", symbol)
	}

	for i, column := range fundamentalNumericColumns {
		if values[i].Valid {
			out[column] = types.NumberValue(values[i].Float64)
		}
	}

	return out, nil
}

// Close releases the database handle.
func (p *DuckDBProvider) Close() error {
	return p.db.Close()
}
