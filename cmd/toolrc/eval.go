package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/catalog"
	"github.com/GriffinCanCode/toolrc/internal/events"
	"github.com/GriffinCanCode/toolrc/internal/hub"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/config"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/sandbox"
)

type evalOptions struct {
	codeFile   string
	paramsFile string
	paramsJSON string
	remote     string
	timeout    time.Duration
	retries    int
	verbose    bool
}

func newEvalCmd() *cobra.Command {
	opts := evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a plugin and print the tool it builds",
		Long: `Evaluate compiles a plugin file, calls ToolPlugin.defineTool(deps).createTool(params)
and prints the resulting tool as JSON.

Without --remote the plugin runs in a private sandbox. An http(s) URL posts it
to a toolrc server; a ws(s) URL sends it over the server's /events bridge.`,
		Example: `  toolrc eval --code weather.js --params weather.params.yaml
  toolrc eval --code sum.js --params-json '{"a":1,"b":2}' --remote http://localhost:9573
  toolrc eval --code sum.js --remote ws://localhost:9573/events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.codeFile, "code", "", "plugin source file")
	f.StringVar(&opts.paramsFile, "params", "", "parameter file (.json, .yaml, .yml or .toml)")
	f.StringVar(&opts.paramsJSON, "params-json", "", "parameters as JSON text")
	f.StringVar(&opts.remote, "remote", "", "toolrc server: http(s)://host or ws(s)://host/events")
	f.DurationVar(&opts.timeout, "timeout", 0, "evaluation timeout (default from SANDBOX_EVAL_TIMEOUT or HUB_EVAL_TIMEOUT)")
	f.IntVar(&opts.retries, "retries", 2, "retries for failed HTTP requests")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	_ = cmd.MarkFlagRequired("code")
	cmd.MarkFlagsMutuallyExclusive("params", "params-json")

	return cmd
}

// runEval writes the tool JSON to out and plugin console output to errOut.
// An evaluation failure is returned as an error.
func runEval(ctx context.Context, opts evalOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.LoadOrDefault()

	code, err := os.ReadFile(opts.codeFile)
	if err != nil {
		return fmt.Errorf("failed to read plugin: %w", err)
	}
	params, err := readParams(opts)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger = logging.NewDevelopment().Logger
	}
	defer func() { _ = logger.Sync() }()

	var res sandbox.Result
	switch {
	case opts.remote == "":
		res, err = evalLocal(ctx, cfg.Sandbox, opts.timeout, string(code), params, logger)
	case isWebSocketURL(opts.remote):
		res, err = evalBridge(ctx, cfg.Hub, opts, string(code), params, logger)
	default:
		res, err = evalHTTP(ctx, opts, string(code), params, logger)
	}
	if err != nil {
		return err
	}

	for _, entry := range res.Console {
		fmt.Fprintf(errOut, "[%s] %s\n", entry.Level, entry.Message)
	}
	if !res.Success {
		if res.Stack != "" && opts.verbose {
			fmt.Fprintln(errOut, res.Stack)
		}
		if res.Phase != "" {
			return fmt.Errorf("evaluation failed (%s): %s", res.Phase, res.Error)
		}
		return fmt.Errorf("evaluation failed: %s", res.Error)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res.Tool, "", "  "); err != nil {
		return fmt.Errorf("invalid tool JSON: %w", err)
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

func evalLocal(ctx context.Context, cfg config.SandboxConfig, timeout time.Duration, code, params string, logger *zap.Logger) (sandbox.Result, error) {
	sbCfg := sandbox.Config{
		EvalTimeout:   cfg.EvalTimeout,
		MaxCallStack:  cfg.MaxCallStack,
		EnableConsole: cfg.Console,
	}
	if timeout > 0 {
		sbCfg.EvalTimeout = timeout
	}

	m, err := sandbox.NewManager(sbCfg, logger)
	if err != nil {
		return sandbox.Result{}, fmt.Errorf("failed to start sandbox: %w", err)
	}
	defer m.Destroy()

	return m.Evaluate(ctx, code, params), nil
}

func evalHTTP(ctx context.Context, opts evalOptions, code, params string, logger *zap.Logger) (sandbox.Result, error) {
	remote := hub.RemoteConfig{BaseURL: opts.remote, RetryMax: opts.retries}
	if opts.timeout > 0 {
		// leave room for the server's own deadline to answer first
		remote.Timeout = opts.timeout + 5*time.Second
	}
	return hub.NewRemote(remote, logger).Evaluate(ctx, code, params)
}

// evalBridge sends one eval-tool-request over a WebSocket event connection.
// The bridge carries no console output or phase.
func evalBridge(ctx context.Context, cfg config.HubConfig, opts evalOptions, code, params string, logger *zap.Logger) (sandbox.Result, error) {
	conn, err := events.Dial(ctx, opts.remote, logger)
	if err != nil {
		return sandbox.Result{}, err
	}
	defer conn.Close()

	hubCfg := hub.Config{Timeout: cfg.EvalTimeout, MaxInFlight: cfg.MaxInFlight}
	if opts.timeout > 0 {
		hubCfg.Timeout = opts.timeout
	}
	client := hub.New(conn, hubCfg, logger)
	defer client.Close()

	tool, err := client.EvalTool(ctx, code, params)
	var evalErr *hub.EvalError
	switch {
	case errors.As(err, &evalErr):
		return sandbox.Result{Success: false, Error: evalErr.Message, Stack: evalErr.Stack}, nil
	case err != nil:
		return sandbox.Result{}, err
	}
	return sandbox.Result{Success: true, Tool: tool}, nil
}

func isWebSocketURL(u string) bool {
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://")
}

// readParams returns the parameter JSON text, "{}" when none is given
func readParams(opts evalOptions) (string, error) {
	switch {
	case opts.paramsJSON != "":
		return opts.paramsJSON, nil
	case opts.paramsFile != "":
		data, err := os.ReadFile(opts.paramsFile)
		if err != nil {
			return "", fmt.Errorf("failed to read parameters: %w", err)
		}
		params, err := catalog.ParamsToJSON(data, filepath.Ext(opts.paramsFile))
		if err != nil {
			return "", fmt.Errorf("%s: %w", opts.paramsFile, err)
		}
		return params, nil
	default:
		return "{}", nil
	}
}
