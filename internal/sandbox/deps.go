package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/toolrc/internal/schema"
)

// newBundle builds the frozen deps object handed to ToolPlugin.defineTool
func (r *Runtime) newBundle() (*goja.Object, error) {
	z, err := r.newZ()
	if err != nil {
		return nil, err
	}

	deps := r.vm.NewObject()
	entries := map[string]any{
		"z": z,
		"toJSONSchema": func(call goja.FunctionCall) goja.Value {
			text, err := schema.ToJSONSchema(r.schemaArg(call.Argument(0), "toJSONSchema argument"))
			if err != nil {
				panic(r.vm.NewGoError(err))
			}
			return r.vm.ToValue(text)
		},
		"toTSDefinition": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			s := r.schemaArg(call.Argument(1), "toTSDefinition schema")
			return r.vm.ToValue(schema.ToTSDefinition(name, s))
		},
		"serializeZod": func(call goja.FunctionCall) goja.Value {
			text, err := schema.Serialize(r.schemaArg(call.Argument(0), "serializeZod argument"))
			if err != nil {
				panic(r.vm.NewGoError(err))
			}
			return r.vm.ToValue(text)
		},
	}
	for name, v := range entries {
		if err := deps.Set(name, v); err != nil {
			return nil, err
		}
	}

	if _, err := r.freeze(goja.Undefined(), deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func (r *Runtime) newZ() (*goja.Object, error) {
	z := r.vm.NewObject()

	scalars := map[string]func() *schema.Schema{
		"string":  schema.String,
		"number":  schema.Number,
		"int":     schema.Int,
		"boolean": schema.Boolean,
		"null":    schema.Null,
		"any":     schema.Any,
		"unknown": schema.Any,
	}
	for name, ctor := range scalars {
		ctor := ctor
		if err := z.Set(name, func(goja.FunctionCall) goja.Value {
			return r.vm.ToValue(ctor())
		}); err != nil {
			return nil, err
		}
	}

	builders := map[string]func(goja.FunctionCall) goja.Value{
		"literal": r.zLiteral,
		"enum":    r.zEnum,
		"array":   r.zArray,
		"object":  r.zObject,
		"record":  r.zRecord,
		"union":   r.zUnion,
	}
	for name, fn := range builders {
		if err := z.Set(name, fn); err != nil {
			return nil, err
		}
	}

	if _, err := r.freeze(goja.Undefined(), z); err != nil {
		return nil, err
	}
	return z, nil
}

func (r *Runtime) zLiteral(call goja.FunctionCall) goja.Value {
	v := call.Argument(0).Export()
	switch v.(type) {
	case nil, string, bool, int64, float64:
	default:
		panic(r.vm.NewTypeError("z.literal expects a string, number, boolean or null"))
	}
	return r.vm.ToValue(schema.Literal(v))
}

func (r *Runtime) zEnum(call goja.FunctionCall) goja.Value {
	items, ok := call.Argument(0).Export().([]any)
	if !ok || len(items) == 0 {
		panic(r.vm.NewTypeError("z.enum expects a non-empty array of strings"))
	}
	values := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			panic(r.vm.NewTypeError("z.enum value %d is not a string", i))
		}
		values[i] = s
	}
	return r.vm.ToValue(schema.Enum(values...))
}

func (r *Runtime) zArray(call goja.FunctionCall) goja.Value {
	return r.vm.ToValue(schema.Array(r.schemaArg(call.Argument(0), "z.array element")))
}

func (r *Runtime) zRecord(call goja.FunctionCall) goja.Value {
	// z.record(value) and z.record(key, value) are both accepted; keys are strings
	arg := call.Argument(0)
	if len(call.Arguments) > 1 {
		arg = call.Argument(1)
	}
	return r.vm.ToValue(schema.Record(r.schemaArg(arg, "z.record value")))
}

func (r *Runtime) zObject(call goja.FunctionCall) goja.Value {
	shape := call.Argument(0)
	if isNullish(shape) {
		return r.vm.ToValue(schema.Object())
	}
	obj := shape.ToObject(r.vm)

	var fields []schema.Field
	for _, key := range obj.Keys() {
		fields = append(fields, schema.F(key, r.schemaArg(obj.Get(key), fmt.Sprintf("z.object property %q", key))))
	}
	return r.vm.ToValue(schema.Object(fields...))
}

func (r *Runtime) zUnion(call goja.FunctionCall) goja.Value {
	items, ok := call.Argument(0).Export().([]any)
	if !ok || len(items) == 0 {
		panic(r.vm.NewTypeError("z.union expects a non-empty array of schemas"))
	}
	options := make([]*schema.Schema, len(items))
	for i, item := range items {
		s, ok := item.(*schema.Schema)
		if !ok || s == nil {
			panic(r.vm.NewTypeError("z.union option %d is not a schema", i))
		}
		options[i] = s
	}
	return r.vm.ToValue(schema.Union(options...))
}

// schemaArg unwraps a schema passed from JS or throws a TypeError
func (r *Runtime) schemaArg(v goja.Value, what string) *schema.Schema {
	if !isNullish(v) {
		if s, ok := v.Export().(*schema.Schema); ok && s != nil {
			return s
		}
	}
	panic(r.vm.NewTypeError("%s is not a schema", what))
}
