package sandbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
)

const hungPlugin = "const ToolPlugin = { defineTool: () => ({ createTool: () => { while (true) {} } }) };"

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	return m
}

func TestManagerScenarios(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name       string
		code       string
		parameters string
		success    bool
		tool       string
		errorText  string
	}{
		{
			name:       "sum",
			code:       sumPlugin,
			parameters: `{"a":2,"b":3}`,
			success:    true,
			tool:       `{"sum":5}`,
		},
		{
			name:       "defineTool throws",
			code:       "const ToolPlugin = { defineTool: () => { throw new Error('bad'); } };",
			parameters: `{"a":2,"b":3}`,
			errorText:  "bad",
		},
		{
			name:       "parameters not json",
			code:       sumPlugin,
			parameters: "not-json",
		},
		{
			name:       "syntax error",
			code:       "const ToolPlugin = ",
			parameters: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Evaluate(ctx, tt.code, tt.parameters)
			assert.Equal(t, tt.success, res.Success)
			if tt.success {
				assert.JSONEq(t, tt.tool, string(res.Tool))
				return
			}
			assert.NotEmpty(t, res.Error)
			assert.Nil(t, res.Tool)
			if tt.errorText != "" {
				assert.Equal(t, tt.errorText, res.Error)
			}
		})
	}
}

func TestManagerReadinessGating(t *testing.T) {
	gate := make(chan struct{})
	m, err := newManager(DefaultConfig(), zap.NewNop(), gate)
	require.NoError(t, err)
	defer m.Destroy()

	assert.False(t, m.Ready())

	done := make(chan Result, 1)
	go func() {
		done <- m.Evaluate(context.Background(), sumPlugin, `{"a":2,"b":3}`)
	}()

	select {
	case <-done:
		t.Fatal("evaluation resolved before the sandbox was ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)

	select {
	case res := <-done:
		require.True(t, res.Success, res.Error)
		assert.JSONEq(t, `{"sum":5}`, string(res.Tool))
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not resolve after readiness")
	}
	assert.True(t, m.Ready())
}

func TestManagerWaitReady(t *testing.T) {
	gate := make(chan struct{})
	m, err := newManager(DefaultConfig(), zap.NewNop(), gate)
	require.NoError(t, err)
	defer m.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WaitReady(ctx), context.DeadlineExceeded)

	close(gate)
	require.NoError(t, m.WaitReady(context.Background()))
}

func TestManagerConcurrentEvaluations(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	results := make([]Result, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Evaluate(ctx, sumPlugin, fmt.Sprintf(`{"a":%d,"b":%d}`, i, i))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.True(t, res.Success, res.Error)
		assert.JSONEq(t, fmt.Sprintf(`{"sum":%d}`, 2*i), string(res.Tool), "evaluation %d", i)
	}
	assert.Zero(t, m.Pending())
}

func TestManagerIdempotence(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	pairs := []struct {
		code       string
		parameters string
	}{
		{code: sumPlugin, parameters: `{"a":4,"b":5}`},
		{code: sumPlugin, parameters: "not-json"},
		{code: "const ToolPlugin = { defineTool: () => { throw new Error('bad'); } };", parameters: `{}`},
	}

	for _, p := range pairs {
		first := m.Evaluate(ctx, p.code, p.parameters)
		second := m.Evaluate(ctx, p.code, p.parameters)
		assert.Equal(t, first.Success, second.Success)
		assert.Equal(t, string(first.Tool), string(second.Tool))
		assert.Equal(t, first.Error, second.Error)
	}
}

func TestManagerDestroy(t *testing.T) {
	m, err := NewManager(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.WaitReady(context.Background()))

	m.Destroy()
	m.Destroy()

	assert.False(t, m.Ready())
	assert.ErrorIs(t, m.WaitReady(context.Background()), ErrNotInitialized)

	res := m.Evaluate(context.Background(), sumPlugin, `{"a":1,"b":1}`)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNotInitialized.Error(), res.Error)
}

func TestManagerDestroyBeforeReady(t *testing.T) {
	gate := make(chan struct{})
	m, err := newManager(DefaultConfig(), zap.NewNop(), gate)
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		done <- m.Evaluate(context.Background(), sumPlugin, `{"a":1,"b":1}`)
	}()
	time.Sleep(20 * time.Millisecond)

	m.Destroy()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Equal(t, ErrDestroyed.Error(), res.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting evaluation was not released by Destroy")
	}
}

func TestManagerDestroyReleasesInFlight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EvalTimeout = 10 * time.Second
	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		done <- m.Evaluate(context.Background(), hungPlugin, `{}`)
	}()
	require.Eventually(t, func() bool { return m.Pending() == 1 }, 5*time.Second, 5*time.Millisecond)

	m.Destroy()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Equal(t, ErrDestroyed.Error(), res.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight evaluation was not released by Destroy")
	}
	assert.Zero(t, m.Pending())
}

func TestManagerCallerCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EvalTimeout = 300 * time.Millisecond
	m := newTestManager(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := m.Evaluate(ctx, hungPlugin, `{}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cancelled")
	assert.Zero(t, m.Pending())

	// The abandoned evaluation times out and the context keeps serving
	res = m.Evaluate(context.Background(), sumPlugin, `{"a":1,"b":2}`)
	require.True(t, res.Success, res.Error)
	assert.JSONEq(t, `{"sum":3}`, string(res.Tool))
}

func TestManagerTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EvalTimeout = 100 * time.Millisecond
	m := newTestManager(t, cfg)

	res := m.Evaluate(context.Background(), hungPlugin, `{}`)
	assert.False(t, res.Success)
	assert.Equal(t, PhaseTimeout, res.Phase)
}

func TestManagerMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	m := newTestManager(t, DefaultConfig(), WithMetrics(metrics))
	ctx := context.Background()

	m.Evaluate(ctx, sumPlugin, `{"a":1,"b":2}`)
	m.Evaluate(ctx, sumPlugin, "not-json")

	snap := metrics.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalEvaluations)
	assert.Equal(t, int64(1), snap.FailedEvaluations)
}
