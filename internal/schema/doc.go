/*
Package schema is the schema-definition primitive injected into tool plugins.

A Schema is an immutable description of a JSON value: every modifier returns
a new Schema, so plugins may share and extend definitions freely. Three pure
derivations are offered alongside the builders:

  - ToJSONSchema: JSON Schema (draft 2020-12) text
  - ToTSDefinition: a TypeScript type alias for a named parameter schema
  - Serialize: a compact structural description of the schema tree

Parse and SafeParse validate a value against the derived JSON Schema and fill
in declared defaults.

# Usage

	params := schema.Object(
		schema.F("a", schema.Number().Describe("left operand")),
		schema.F("b", schema.Number().Optional()),
	)
	text, _ := schema.ToJSONSchema(params)
	decl := schema.ToTSDefinition("add", params)
*/
package schema
