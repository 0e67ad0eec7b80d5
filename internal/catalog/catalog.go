// Package catalog holds the plugin tools a server offers by name.
//
// Tools are loaded once from a directory: every file matching the glob
// pattern becomes a tool named after its path without the extension. A
// sibling <name>.params.{json,yaml,yml,toml} file supplies default
// parameters, and a leading "// description:" comment a description.
//
// Example Usage:
//
//	cat, err := catalog.Load("tools", "**/*.js")
//	tool, ok := cat.Get("math/sum")
//	tools := cat.List()
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/toolrc/internal/shared/utils"
)

var (
	ErrDuplicateTool = errors.New("duplicate tool name")
	ErrInvalidName   = errors.New("invalid tool name")
)

// Tool is one plugin source with its defaults
type Tool struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Code          string `json:"code"`
	DefaultParams string `json:"defaultParams"`
	Source        string `json:"source,omitempty"`
	Digest        string `json:"digest"`
}

// Summary is the listing form of a Tool
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Digest      string `json:"digest"`
}

// Summary drops the code
func (t *Tool) Summary() Summary {
	return Summary{Name: t.Name, Description: t.Description, Source: t.Source, Digest: t.Digest}
}

// Catalog is a concurrency-safe set of tools keyed by name
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{tools: make(map[string]*Tool)}
}

// Add registers a tool and sets its digest. Names must be unique.
func (c *Catalog) Add(tool *Tool) error {
	if tool == nil {
		return ErrInvalidName
	}
	if err := utils.ValidateToolName(tool.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if tool.DefaultParams == "" {
		tool.DefaultParams = "{}"
	}
	tool.Digest = utils.Digest(tool.Code, tool.DefaultParams)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.tools[tool.Name]; ok {
		return fmt.Errorf("%w %q: %s and %s", ErrDuplicateTool, tool.Name, existing.Source, tool.Source)
	}
	c.tools[tool.Name] = tool
	return nil
}

// Get returns the tool registered under name
func (c *Catalog) Get(name string) (*Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, ok := c.tools[name]
	return tool, ok
}

// List returns summaries sorted by name
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Summary, 0, len(c.tools))
	for _, tool := range c.tools {
		out = append(out, tool.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of tools
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}
