package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/pkg/logger"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
)

// slowQueryThreshold marks queries worth a warning log.
const slowQueryThreshold = 100 * time.Millisecond

// PostgresDB wraps a PostgreSQL connection pool
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL connection pool
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Slow query logging, with per-query debug output in development
	poolConfig.ConnConfig.Tracer = newQueryTracer(logger.IsDebug())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", cfg.MaxConns),
	)

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// BeginTx starts a new transaction
func (db *PostgresDB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

// BeginTxWithOptions starts a new transaction with options
func (db *PostgresDB) BeginTxWithOptions(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return db.Pool.BeginTx(ctx, opts)
}

// NewSQLX opens a database/sql backed handle for repositories that scan
// rows into tagged structs and array columns.
func NewSQLX(cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres via sqlx: %w", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// QueryMetrics aggregates pool-wide query counters
type QueryMetrics struct {
	TotalQueries    int64
	SlowQueries     int64
	FailedQueries   int64
	TotalDurationMs int64
}

// queryTracer implements pgx.QueryTracer for logging and metrics
type queryTracer struct {
	enableDebug bool
	mu          sync.Mutex
	metrics     *QueryMetrics
}

func newQueryTracer(enableDebug bool) *queryTracer {
	return &queryTracer{
		enableDebug: enableDebug,
		metrics:     &QueryMetrics{},
	}
}

type queryStartKey struct{}
type querySQLKey struct{}
type queryArgsKey struct{}

func (t *queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx = context.WithValue(ctx, queryStartKey{}, time.Now())
	ctx = context.WithValue(ctx, querySQLKey{}, data.SQL)
	ctx = context.WithValue(ctx, queryArgsKey{}, len(data.Args))

	if t.enableDebug {
		logger.Debug("executing query",
			zap.String("sql", truncateSQL(data.SQL, 200)),
			zap.Int("args", len(data.Args)),
		)
	}

	return ctx
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}

	duration := time.Since(start)
	sql, _ := ctx.Value(querySQLKey{}).(string)
	op := sqlOperation(sql)

	t.mu.Lock()
	t.metrics.TotalQueries++
	t.metrics.TotalDurationMs += duration.Milliseconds()
	if data.Err != nil {
		t.metrics.FailedQueries++
	}
	if duration > slowQueryThreshold {
		t.metrics.SlowQueries++
	}
	t.mu.Unlock()

	metrics.RecordDBQuery("postgres", op, duration)
	if data.Err != nil && data.Err != pgx.ErrNoRows {
		metrics.RecordDBError("postgres", op)
	}

	if duration > slowQueryThreshold {
		argCount, _ := ctx.Value(queryArgsKey{}).(int)
		logger.Warn("slow query detected",
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("sql", truncateSQL(sql, 200)),
			zap.Int("args", argCount),
		)
	}
}

// GetMetrics returns a snapshot of the accumulated query counters
func (t *queryTracer) GetMetrics() QueryMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.metrics
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "..."
}

// sqlOperation extracts the leading SQL verb for metric labels.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// Transaction executes a function within a transaction
func Transaction(ctx context.Context, db *PostgresDB, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
