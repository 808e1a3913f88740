package server

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// execRequestSchema 约束执行请求的结构，业务字段的深层校验交给引擎。
const execRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["trigger_type", "exec_id", "account"],
  "properties": {
    "trigger_type": {"type": "integer", "minimum": 1, "maximum": 3},
    "trigger_detail": {"type": "object"},
    "exec_id": {"type": "string", "minLength": 1},
    "exchange": {"type": "string"},
    "account": {"type": "object"},
    "market_data_context": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["symbol", "bars"],
        "properties": {
          "symbol": {"type": "string", "minLength": 1},
          "timeframe": {"type": "string"},
          "bars": {"type": "array"}
        }
      }
    },
    "incomplete_orders": {"type": "array"},
    "completed_orders": {"type": "array"},
    "strategy_param": {"type": "object"}
  }
}`

var compiledExecSchema = mustCompile("exec_request.json", execRequestSchema)

func mustCompile(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}
