// Package http serves the toolrc REST API: direct plugin evaluation, the
// tool catalog, health and metrics.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/api/middleware"
	"github.com/GriffinCanCode/toolrc/internal/catalog"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/toolrc/internal/sandbox"
	"github.com/GriffinCanCode/toolrc/internal/shared/utils"
)

// Sandbox is the evaluation backend; sandbox.Manager implements it
type Sandbox interface {
	Evaluate(ctx context.Context, code, parameters string) sandbox.Result
	Ready() bool
}

// EvalRequest is the body of POST /api/evalTool. Parameters may be JSON
// text in a string or an inline JSON value.
type EvalRequest struct {
	Code       string          `json:"code" binding:"required"`
	Parameters json.RawMessage `json:"parameters"`
}

// ToolEvalRequest is the optional body of POST /api/tools/:name/eval
type ToolEvalRequest struct {
	Parameters json.RawMessage `json:"parameters"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sandbox Sandbox
	catalog *catalog.Catalog
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	logger  *zap.Logger
	version string
}

// NewHandlers creates a new handler set. cat and tracer may be nil.
func NewHandlers(
	sb Sandbox,
	cat *catalog.Catalog,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
	version string,
) *Handlers {
	if cat == nil {
		cat = catalog.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sandbox: sb,
		catalog: cat,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
		version: version,
	}
}

// Ping answers the liveness probe
func (h *Handlers) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Health reports sandbox readiness; 503 until the sandbox is ready
func (h *Handlers) Health(c *gin.Context) {
	ready := h.sandbox.Ready()
	status, code := "healthy", http.StatusOK
	if !ready {
		status, code = "starting", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"version": h.version,
		"sandbox": gin.H{"ready": ready},
		"tools":   h.catalog.Len(),
		"metrics": h.metrics.GetSnapshot(),
	})
}

// EvalTool evaluates plugin code posted in the body
func (h *Handlers) EvalTool(c *gin.Context) {
	limitBody(c)
	var req EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(c, err) {
			return
		}
		badRequest(c, fmt.Sprintf("invalid request: %v", err))
		return
	}
	params, err := parameters(req.Parameters, "{}")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := utils.ValidateEvalInput(req.Code, params); err != nil {
		rejectInput(c, err)
		return
	}

	h.respond(c, h.evaluate(c, "inline", req.Code, params))
}

// ListTools lists the catalog
func (h *Handlers) ListTools(c *gin.Context) {
	tools := h.catalog.List()
	c.JSON(http.StatusOK, gin.H{
		"tools": tools,
		"count": len(tools),
	})
}

// GetTool returns one tool including its code. The digest is the ETag.
func (h *Handlers) GetTool(c *gin.Context) {
	tool, ok := h.lookup(c)
	if !ok {
		return
	}
	etag := `"` + tool.Digest + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// EvalCatalogTool evaluates a catalog tool with the posted parameters or
// its defaults
func (h *Handlers) EvalCatalogTool(c *gin.Context) {
	tool, ok := h.lookup(c)
	if !ok {
		return
	}

	limitBody(c)
	var req ToolEvalRequest
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if tooLarge(c, err) {
			return
		}
		badRequest(c, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := sonic.Unmarshal(body, &req); err != nil {
			badRequest(c, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}
	params, err := parameters(req.Parameters, tool.DefaultParams)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := utils.ValidateSize(params, "parameters", utils.MaxParametersSize); err != nil {
		rejectInput(c, err)
		return
	}

	h.respond(c, h.evaluate(c, tool.Name, tool.Code, params))
}

func (h *Handlers) lookup(c *gin.Context) (*catalog.Tool, bool) {
	name := c.Param("name")
	tool, ok := h.catalog.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   fmt.Sprintf("tool %q not found", name),
		})
	}
	return tool, ok
}

func (h *Handlers) evaluate(c *gin.Context, tool, code, params string) sandbox.Result {
	span, ctx := h.tracer.StartSpan(c.Request.Context(), "sandbox.evaluate")
	span.SetTag("tool", tool)
	defer h.tracer.End(span)

	res := h.sandbox.Evaluate(ctx, code, params)

	span.SetTag("success", fmt.Sprint(res.Success))
	if !res.Success {
		span.SetTag("phase", string(res.Phase))
		h.logger.Debug("Evaluation failed",
			logging.RequestID(middleware.GetRequestID(c)),
			logging.Tool(tool),
			logging.Phase(string(res.Phase)),
			zap.String("error", res.Error),
		)
	}
	return res
}

func (h *Handlers) respond(c *gin.Context, res sandbox.Result) {
	if res.Success {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusUnprocessableEntity, res)
}

func rejectInput(c *gin.Context, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, utils.ErrTooLarge) {
		code = http.StatusRequestEntityTooLarge
	}
	c.JSON(code, sandbox.Failed(err.Error()))
}

// limitBody caps the request body so oversized input is rejected while
// reading instead of after
func limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxEvalBodySize)
}

// tooLarge answers 413 when err comes from a body over the limit
func tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	c.JSON(http.StatusRequestEntityTooLarge, sandbox.Failed(
		fmt.Sprintf("%v: request body exceeds %d bytes", utils.ErrTooLarge, maxErr.Limit)))
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, sandbox.Failed(msg))
}

// parameters returns the JSON text carried by raw: a JSON string is taken
// as the text itself, any other value is passed through. Absent or null
// yields fallback.
func parameters(raw json.RawMessage, fallback string) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback, nil
	}
	if raw[0] == '"' {
		var text string
		if err := sonic.Unmarshal(raw, &text); err != nil {
			return "", errors.New("invalid parameters string")
		}
		return text, nil
	}
	return string(raw), nil
}
