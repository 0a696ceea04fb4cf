package engine

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/tools/txtar"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/analysis/detect"
	"github.com/xkilldash9x/lancet/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testEngine(t *testing.T, fs afero.Fs, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Scan.NoProgress = true
	if mutate != nil {
		mutate(cfg)
	}
	logger := zaptest.NewLogger(t)
	registry, err := detect.NewRegistry(cfg.Analysis, nil, logger)
	require.NoError(t, err)
	return New(cfg, fs, registry, nil, "test", logger)
}

// writeTree materializes a txtar archive into the in-memory filesystem,
// one file per archive entry.
func writeTree(t *testing.T, fs afero.Fs, archive string) {
	t.Helper()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		require.NoError(t, afero.WriteFile(fs, f.Name, f.Data, 0o644))
	}
}

const vulnerableJS = `
const express = require("express");
const app = express();
app.get("/user", (req, res) => {
  db.query("SELECT * FROM users WHERE id = " + req.query.id);
});
`

const cleanJS = `
function add(a, b) {
  return a + b;
}
`

func TestRunFindsInjection(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/handler.js", []byte(vulnerableJS), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/math.js", []byte(cleanJS), 0o644))

	e := testEngine(t, fs, nil)
	env, err := e.Run(context.Background(), []string{"/src"})
	require.NoError(t, err)

	assert.Equal(t, 2, env.Stats.FilesAnalyzed)
	assert.Equal(t, "lancet", env.Tool)
	assert.NotEmpty(t, env.ScanID)

	require.NotEmpty(t, env.Findings)
	found := false
	for _, f := range env.Findings {
		assert.Equal(t, env.ScanID, f.ScanID)
		if f.RuleID == detect.RuleSQLInjection && f.File == "/src/handler.js" {
			found = true
			assert.Equal(t, schemas.SeverityCritical, f.Severity)
		}
	}
	assert.True(t, found, "expected a sql-injection finding in handler.js")
}

func TestRunNoInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	e := testEngine(t, fs, nil)
	_, err := e.Run(context.Background(), []string{"/empty"})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = e.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestRunDeterministicOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/b.js", []byte(vulnerableJS), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/a.js", []byte(vulnerableJS), 0o644))

	e := testEngine(t, fs, nil)
	env, err := e.Run(context.Background(), []string{"/src"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(env.Findings), 2)
	for i := 1; i < len(env.Findings); i++ {
		prev, cur := env.Findings[i-1], env.Findings[i]
		if prev.File == cur.File {
			assert.LessOrEqual(t, prev.Line, cur.Line)
		} else {
			assert.Less(t, prev.File, cur.File)
		}
	}
}

func TestRunAnalyzesInlineScripts(t *testing.T) {
	page := `<html>
<head><title>demo</title></head>
<body>
<script>
db.query("SELECT name FROM users WHERE id = " + req.query.id);
</script>
</body>
</html>`

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/index.html", []byte(page), 0o644))

	e := testEngine(t, fs, nil)
	env, err := e.Run(context.Background(), []string{"/site"})
	require.NoError(t, err)

	require.NotEmpty(t, env.Findings)
	f := env.Findings[0]
	assert.Equal(t, "/site/index.html", f.File)
	// The finding's line must land inside the document, not the lifted script.
	assert.Greater(t, f.Line, 3)
}

func TestRunCountsParseableFilesOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, `
-- /src/app.ts --
const n: number = 1;
-- /src/app.min.js --
function add(a, b) { return a + b; }
-- /src/node_modules/lib.js --
function add(a, b) { return a + b; }
`)

	e := testEngine(t, fs, nil)
	env, err := e.Run(context.Background(), []string{"/src"})
	require.NoError(t, err)

	assert.Equal(t, 1, env.Stats.FilesAnalyzed)
	assert.Equal(t, 1, env.Stats.FilesSkipped) // the .min.js bundle
	assert.Empty(t, env.Findings)
}

func TestRunSinkReceivesFindings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/handler.js", []byte(vulnerableJS), 0o644))

	sink := make(chan schemas.Finding, 64)
	cfg := config.NewDefaultConfig()
	cfg.Scan.NoProgress = true
	logger := zaptest.NewLogger(t)
	registry, err := detect.NewRegistry(cfg.Analysis, nil, logger)
	require.NoError(t, err)
	e := New(cfg, fs, registry, sink, "test", logger)

	env, err := e.Run(context.Background(), []string{"/src"})
	require.NoError(t, err)
	close(sink)

	var persisted []schemas.Finding
	for f := range sink {
		persisted = append(persisted, f)
	}
	assert.Len(t, persisted, len(env.Findings))
}

func TestDiscoverRespectsFilters(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, `
-- /src/a.js --
x
-- /src/sub/b.ts --
x
-- /src/dist/c.js --
x
-- /src/types.d.ts --
x
-- /src/readme.md --
x
`)

	e := testEngine(t, fs, func(cfg *config.Config) {
		cfg.Engine.MaxFileSize = 1024
	})
	d, err := e.discover([]string{"/src"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/a.js", "/src/sub/b.ts"}, d.files)
	assert.Equal(t, 1, d.skipped) // the .d.ts declaration file
}

func TestDiscoverOversizeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	big := make([]byte, 256)
	require.NoError(t, afero.WriteFile(fs, "/src/big.js", big, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/small.js", []byte("x"), 0o644))

	e := testEngine(t, fs, func(cfg *config.Config) {
		cfg.Engine.MaxFileSize = 64
	})
	d, err := e.discover([]string{"/src"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/small.js"}, d.files)
	assert.Equal(t, 1, d.skipped)
}

func TestDiscoverExplicitFileTarget(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.js", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/notes.txt", []byte("x"), 0o644))

	e := testEngine(t, fs, nil)

	d, err := e.discover([]string{"/src/a.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.js"}, d.files)

	_, err = e.discover([]string{"/src/notes.txt"})
	assert.Error(t, err)

	_, err = e.discover([]string{"/src/missing.js"})
	assert.Error(t, err)
}
