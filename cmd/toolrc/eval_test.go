package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/api/ws"
	"github.com/GriffinCanCode/toolrc/internal/catalog"
	"github.com/GriffinCanCode/toolrc/internal/sandbox"
)

const sumPlugin = `const ToolPlugin = {
  defineTool: (deps) => ({
    createTool: (p) => { console.log("building"); return { sum: p.a + p.b }; }
  })
};`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunEvalLocal(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "sum.js", sumPlugin)

	tests := []struct {
		name    string
		opts    evalOptions
		want    string
		wantErr string
	}{
		{
			name: "params json",
			opts: evalOptions{paramsJSON: `{"a":2,"b":3}`},
			want: `{"sum":5}`,
		},
		{
			name: "yaml params file",
			opts: evalOptions{paramsFile: writeFile(t, dir, "sum.params.yaml", "a: 1\nb: 4\n")},
			want: `{"sum":5}`,
		},
		{
			name: "toml params file",
			opts: evalOptions{paramsFile: writeFile(t, dir, "sum.params.toml", "a = 10\nb = 5\n")},
			want: `{"sum":15}`,
		},
		{
			name:    "invalid parameters",
			opts:    evalOptions{paramsJSON: "not-json"},
			wantErr: "evaluation failed (parameters)",
		},
		{
			name:    "unsupported params file",
			opts:    evalOptions{paramsFile: writeFile(t, dir, "sum.params.ini", "a=1")},
			wantErr: "unsupported parameter format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.codeFile = code
			tt.opts.timeout = 5 * time.Second

			var out, errOut bytes.Buffer
			err := runEval(context.Background(), tt.opts, &out, &errOut)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, out.String())
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, out.String())
			assert.Equal(t, "[log] building\n", errOut.String())
		})
	}
}

func TestRunEvalTimeout(t *testing.T) {
	code := writeFile(t, t.TempDir(), "loop.js", "while (true) {}")

	err := runEval(context.Background(), evalOptions{codeFile: code, timeout: 50 * time.Millisecond}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestRunEvalMissingCode(t *testing.T) {
	err := runEval(context.Background(), evalOptions{codeFile: filepath.Join(t.TempDir(), "missing.js")}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunEvalRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"tool":{"remote":true}}`))
	}))
	t.Cleanup(srv.Close)

	code := writeFile(t, t.TempDir(), "sum.js", sumPlugin)
	var out bytes.Buffer
	err := runEval(context.Background(), evalOptions{codeFile: code, remote: srv.URL, timeout: time.Second}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"remote":true}`, out.String())
}

func TestRunEvalOverBridge(t *testing.T) {
	m, err := sandbox.NewManager(sandbox.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Destroy)

	h := ws.NewHandler(m, zap.NewNop(), nil, nil)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/events", h.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"

	dir := t.TempDir()
	code := writeFile(t, dir, "sum.js", sumPlugin)

	var out bytes.Buffer
	err = runEval(context.Background(), evalOptions{codeFile: code, paramsJSON: `{"a":20,"b":22}`, remote: url}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":42}`, out.String())

	bad := writeFile(t, dir, "bad.js", "throw new Error('nope')")
	err = runEval(context.Background(), evalOptions{codeFile: bad, remote: url}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.EqualError(t, err, "evaluation failed: nope")
}

func TestReadParamsDefaultsToEmptyObject(t *testing.T) {
	params, err := readParams(evalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "{}", params)

	_, err = readParams(evalOptions{paramsFile: writeFile(t, t.TempDir(), "p.conf", "x")})
	assert.ErrorIs(t, err, catalog.ErrUnsupportedFormat)
}

func TestCommands(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "toolrc dev")

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"eval"})
	assert.Error(t, root.Execute(), "--code is required")
}
