package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/sandbox"
)

// EvalToolPath is the direct evaluation endpoint of a toolrc server
const EvalToolPath = "/api/evalTool"

// RemoteConfig configures a RemoteClient
type RemoteConfig struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

// EvalRequest is the body of POST /api/evalTool
type EvalRequest struct {
	Code       string `json:"code"`
	Parameters string `json:"parameters"`
}

// RemoteClient evaluates plugins on a toolrc server over HTTP. Connection
// errors and 5xx responses are retried; evaluation failures are not.
type RemoteClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewRemote creates a client for the server at config.BaseURL
func NewRemote(config RemoteConfig, logger *zap.Logger) *RemoteClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 35 * time.Second
	}
	if config.RetryMax < 0 {
		config.RetryMax = 0
	}

	retrying := retryablehttp.NewClient()
	retrying.RetryMax = config.RetryMax
	retrying.RetryWaitMin = 200 * time.Millisecond
	retrying.RetryWaitMax = 2 * time.Second
	retrying.Logger = leveledLogger{logger.Sugar()}

	client := resty.NewWithClient(retrying.StandardClient()).
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")

	return &RemoteClient{http: client, logger: logger}
}

// Evaluate posts one evaluation. A response the server produced is always
// returned as a Result, successful or not; err reports only transport and
// protocol problems.
func (r *RemoteClient) Evaluate(ctx context.Context, code, parameters string) (sandbox.Result, error) {
	var result sandbox.Result
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(EvalRequest{Code: code, Parameters: parameters}).
		SetResult(&result).
		SetError(&result).
		Post(EvalToolPath)
	if err != nil {
		return sandbox.Result{}, fmt.Errorf("eval request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusUnprocessableEntity:
		r.logger.Debug("Remote evaluation finished",
			zap.Int("status", resp.StatusCode()),
			zap.Bool("success", result.Success),
		)
		return result, nil
	default:
		return sandbox.Result{}, fmt.Errorf("eval request failed: %s: %s", resp.Status(), strings.TrimSpace(string(resp.Body())))
	}
}

// EvalTool mirrors Client.EvalTool over HTTP
func (r *RemoteClient) EvalTool(ctx context.Context, code, parameters string) (json.RawMessage, error) {
	res, err := r.Evaluate(ctx, code, parameters)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &EvalError{Message: res.Error, Stack: res.Stack}
	}
	return res.Tool, nil
}

// leveledLogger routes retryablehttp logs to zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
