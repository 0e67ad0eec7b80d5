/*
Package sandbox evaluates untrusted tool plugins inside an isolated
JavaScript context.

# Overview

A plugin is JavaScript source that declares an entry symbol:

	const ToolPlugin = {
	  defineTool: (deps) => ({
	    createTool: (params) => ({ ... }),
	  }),
	};

The isolated context is a goroutine that owns a private goja runtime. It
shares no memory with the host: requests go in as Messages on a channel and
results come back as Messages carrying the tool as JSON.

# Components

 1. Runtime: goja VM with the dependency bundle installed and frozen
 2. executor: the loop inside the context, one result per request
 3. Manager: owns one context, gates calls on readiness and routes each
    result to its caller by correlation id

# Dependency bundle

defineTool receives { z, toJSONSchema, toTSDefinition, serializeZod }. z
builds schemas (see package schema); the three helpers render a schema as
JSON Schema, a TypeScript alias and a structural JSON tree.

# Failure phases

Every failure is reported as a Result naming the stage that failed:
protocol, compile, contract, parameters, construct, serialize, timeout or
internal. An evaluation never takes longer than Config.EvalTimeout; a
plugin that runs past it is interrupted and the context keeps serving.

# Usage Example

	mgr, err := sandbox.NewManager(sandbox.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer mgr.Destroy()

	res := mgr.Evaluate(ctx, code, `{"a":2,"b":3}`)
	if !res.Success {
		log.Error("evaluation failed", zap.String("error", res.Error))
	}
*/
package sandbox
