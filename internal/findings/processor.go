// Package findings persists scan findings to PostgreSQL in batches. The
// store is optional: scans without a configured database URL never construct
// a Processor and findings flow only to the reporters.
package findings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/config"
)

// Copier is the slice of the pgx pool the processor needs. pgxpool.Pool
// satisfies it in production; tests substitute a mock.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// DB wraps the concrete pool behind the Copier interface.
type DB struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool against the configured database URL.
func Connect(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating findings database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging findings database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// CopyFrom delegates to the underlying pool.
func (d *DB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return d.pool.CopyFrom(ctx, tableName, columnNames, rowSrc)
}

// Exec delegates to the underlying pool.
func (d *DB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return d.pool.Exec(ctx, sql, arguments...)
}

// Close releases the pool.
func (d *DB) Close() {
	d.pool.Close()
}

// findingsSchema creates the findings table on first use. CI databases are
// frequently ephemeral, so the processor owns its own schema.
const findingsSchema = `
CREATE TABLE IF NOT EXISTS findings (
	id             UUID PRIMARY KEY,
	scan_id        UUID NOT NULL,
	rule_id        TEXT NOT NULL,
	file           TEXT NOT NULL,
	line           INT NOT NULL,
	"column"       INT NOT NULL,
	severity       TEXT NOT NULL,
	confidence     TEXT NOT NULL,
	vulnerability  TEXT NOT NULL,
	description    TEXT NOT NULL,
	evidence       JSONB NOT NULL DEFAULT '{}',
	recommendation TEXT NOT NULL DEFAULT '',
	cwe            TEXT[] NOT NULL DEFAULT '{}',
	observed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS findings_scan_idx ON findings (scan_id);
`

// findingsColumns must stay aligned with findingsSchema and rowFor.
var findingsColumns = []string{
	"id", "scan_id", "rule_id", "file", "line", "column",
	"severity", "confidence", "vulnerability", "description",
	"evidence", "recommendation", "cwe", "observed_at",
}

// Processor batches findings and persists them with pgx CopyFrom. It owns
// one goroutine started by Start; producers feed the input channel and close
// it (or call Stop) when the scan finishes.
type Processor struct {
	input  <-chan schemas.Finding
	db     Copier
	logger *zap.Logger
	cfg    config.DatabaseConfig

	mu     sync.Mutex
	buffer []schemas.Finding

	wg          sync.WaitGroup
	stopSignal  chan struct{}
	stopOnce    sync.Once
	flushSignal chan struct{}
}

// NewProcessor builds a processor reading from input and writing through db.
func NewProcessor(input <-chan schemas.Finding, db Copier, cfg config.DatabaseConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Processor{
		input:       input,
		db:          db,
		logger:      logger.Named("findings"),
		cfg:         cfg,
		buffer:      make([]schemas.Finding, 0, cfg.BatchSize),
		stopSignal:  make(chan struct{}),
		flushSignal: make(chan struct{}, 1),
	}
}

// EnsureSchema creates the findings table when it does not exist.
func (p *Processor) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, findingsSchema); err != nil {
		return fmt.Errorf("creating findings schema: %w", err)
	}
	return nil
}

// Start launches the processing loop. It returns immediately; call Stop to
// drain and flush.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	p.logger.Debug("Findings processor started",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("flush_interval", p.cfg.FlushInterval))

	for {
		select {
		case finding, ok := <-p.input:
			if !ok {
				p.flush(ctx)
				return
			}
			p.buffered(finding)

		case <-ticker.C:
			p.flush(ctx)

		case <-p.flushSignal:
			p.flush(ctx)

		case <-p.stopSignal:
			p.drain()
			p.flush(ctx)
			return

		case <-ctx.Done():
			// Shutdown under cancellation still attempts one final flush so
			// close-to-complete scans keep their history.
			p.drain()
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			p.flush(flushCtx)
			cancel()
			return
		}
	}
}

// Stop drains the input channel, flushes the buffer, and waits for the loop
// to exit. Idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopSignal) })
	p.wg.Wait()
}

func (p *Processor) drain() {
	for {
		select {
		case finding, ok := <-p.input:
			if !ok {
				return
			}
			p.buffered(finding)
		default:
			return
		}
	}
}

func (p *Processor) buffered(finding schemas.Finding) {
	if finding.ObservedAt.IsZero() {
		finding.ObservedAt = time.Now().UTC()
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, finding)
	full := len(p.buffer) >= p.cfg.BatchSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushSignal <- struct{}{}:
		default:
		}
	}
}

// flush persists the current buffer synchronously. A failed batch is logged
// and dropped; persistence is best-effort history, not scan correctness.
func (p *Processor) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	batch := make([]schemas.Finding, len(p.buffer))
	copy(batch, p.buffer)
	p.buffer = p.buffer[:0]
	p.mu.Unlock()

	if err := p.persistBatch(ctx, batch); err != nil {
		p.logger.Error("Failed to persist findings batch",
			zap.Error(err), zap.Int("batch_size", len(batch)))
	}
}

func (p *Processor) persistBatch(ctx context.Context, batch []schemas.Finding) error {
	rows := make([][]any, 0, len(batch))
	for _, f := range batch {
		if f.ScanID == "" {
			// History needs the scan correlation; an unattributed finding is
			// a bug in the emitter, not data to store.
			p.logger.Warn("Finding missing scan ID, not persisted",
				zap.String("finding_id", f.ID), zap.String("rule", f.RuleID))
			continue
		}
		rows = append(rows, rowFor(f))
	}
	if len(rows) == 0 {
		return nil
	}

	copied, err := p.db.CopyFrom(ctx, pgx.Identifier{"findings"}, findingsColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying findings batch: %w", err)
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("copied %d of %d findings", copied, len(rows))
	}

	p.logger.Debug("Persisted findings batch", zap.Int("count", len(rows)))
	return nil
}

func rowFor(f schemas.Finding) []any {
	evidence := f.Evidence
	if len(evidence) == 0 {
		evidence = []byte("{}")
	}
	return []any{
		f.ID, f.ScanID, f.RuleID, f.File, f.Line, f.Column,
		string(f.Severity), string(f.Confidence), f.VulnerabilityName,
		f.Description, []byte(evidence), f.Recommendation, f.CWE,
		f.ObservedAt,
	}
}
