package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/toolrc/internal/schema"
)

const (
	maxTransferDepth = 64
	// maxTransferNodes bounds the values visited while checking one tool.
	// Shared references are visited once per path, so a small object graph
	// can expand to an exponential number of nodes.
	maxTransferNodes = 1_000_000
)

var errNotTransferable = errors.New("tool cannot be transferred")

// transfer exports a tool instance out of the runtime as JSON. Values that
// JSON cannot carry faithfully are rejected instead of silently dropped.
func (r *Runtime) transfer(v goja.Value) ([]byte, error) {
	var exported any
	if !isNullish(v) {
		exported = v.Export()
	}
	w := transferWalk{budget: maxTransferNodes}
	if err := w.check(exported, "tool", 0); err != nil {
		return nil, err
	}
	out, err := sonic.ConfigStd.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotTransferable, err)
	}
	return out, nil
}

type transferWalk struct {
	budget int
}

func (w *transferWalk) check(v any, path string, depth int) error {
	if w.budget <= 0 {
		return fmt.Errorf("%w: %s expands to more than %d values", errNotTransferable, path, maxTransferNodes)
	}
	w.budget--
	if depth > maxTransferDepth {
		return fmt.Errorf("%w: %s is nested deeper than %d levels or is cyclic", errNotTransferable, path, maxTransferDepth)
	}

	switch t := v.(type) {
	case nil, bool, string, int64, int, int32, uint32, time.Time, json.Number, *schema.Schema:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: %s is not a finite number", errNotTransferable, path)
		}
		return nil
	case []any:
		for i, item := range t {
			if err := w.check(item, fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for k, item := range t {
			if err := w.check(item, path+"."+k, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if reflect.TypeOf(v).Kind() == reflect.Func {
		return fmt.Errorf("%w: %s is a function", errNotTransferable, path)
	}
	return fmt.Errorf("%w: %s has unsupported type %T", errNotTransferable, path, v)
}
