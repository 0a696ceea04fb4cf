package findings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testFinding(scanID string) schemas.Finding {
	return schemas.Finding{
		ID:                uuid.New().String(),
		ScanID:            scanID,
		RuleID:            "sql-injection",
		File:              "src/app.js",
		Line:              12,
		Column:            3,
		VulnerabilityName: "SQL Injection",
		Severity:          schemas.SeverityCritical,
		Confidence:        schemas.ConfidenceHigh,
		Description:       "tainted query text",
		ObservedAt:        time.Now().UTC(),
	}
}

func newTestProcessor(t *testing.T, mock pgxmock.PgxPoolIface, cfg config.DatabaseConfig) (*Processor, chan schemas.Finding) {
	t.Helper()
	input := make(chan schemas.Finding, 16)
	return NewProcessor(input, mock, cfg, zaptest.NewLogger(t)), input
}

func TestProcessorFlushesOnStop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scanID := uuid.New().String()
	mock.ExpectCopyFrom(pgx.Identifier{"findings"}, findingsColumns).
		WillReturnResult(3)

	p, input := newTestProcessor(t, mock, config.DatabaseConfig{BatchSize: 100, FlushInterval: time.Hour})
	p.Start(context.Background())

	for i := 0; i < 3; i++ {
		input <- testFinding(scanID)
	}
	p.Stop()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessorFlushesWhenBatchFills(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scanID := uuid.New().String()
	// Batch size 2 with 2 findings: one CopyFrom before the stop-flush sees
	// an empty buffer.
	mock.ExpectCopyFrom(pgx.Identifier{"findings"}, findingsColumns).
		WillReturnResult(2)

	p, input := newTestProcessor(t, mock, config.DatabaseConfig{BatchSize: 2, FlushInterval: time.Hour})
	p.Start(context.Background())

	input <- testFinding(scanID)
	input <- testFinding(scanID)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond, "batch-size flush never happened")

	p.Stop()
}

func TestProcessorSkipsFindingsWithoutScanID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Only the attributed finding reaches the database.
	mock.ExpectCopyFrom(pgx.Identifier{"findings"}, findingsColumns).
		WillReturnResult(1)

	p, input := newTestProcessor(t, mock, config.DatabaseConfig{BatchSize: 100, FlushInterval: time.Hour})
	p.Start(context.Background())

	orphan := testFinding("")
	input <- orphan
	input <- testFinding(uuid.New().String())
	p.Stop()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessorStopIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p, _ := newTestProcessor(t, mock, config.DatabaseConfig{BatchSize: 100, FlushInterval: time.Hour})
	p.Start(context.Background())

	p.Stop()
	p.Stop() // must not panic or deadlock
}

func TestProcessorEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS findings").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	p, _ := newTestProcessor(t, mock, config.DatabaseConfig{})
	require.NoError(t, p.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessorClosedInputDrains(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scanID := uuid.New().String()
	mock.ExpectCopyFrom(pgx.Identifier{"findings"}, findingsColumns).
		WillReturnResult(1)

	p, input := newTestProcessor(t, mock, config.DatabaseConfig{BatchSize: 100, FlushInterval: time.Hour})
	input <- testFinding(scanID)
	close(input)

	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()
}
