package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// profilesSchema rejects malformed profile files before decoding, so a typo
// in a hand-edited file fails loudly instead of silently defaulting.
const profilesSchema = `{
  "type": "object",
  "required": ["profiles"],
  "properties": {
    "profiles": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "properties": {
          "description": {"type": "string"},
          "sizer": {
            "type": "string",
            "enum": ["volatility", "equal_weight", "kelly", "fixed_fractional", "risk_parity", "crypto_fractional"]
          },
          "constraints": {
            "type": "array",
            "items": {
              "type": "string",
              "enum": ["short_selling", "min_position_value", "max_position", "max_positions", "buying_power", "gross_leverage", "net_leverage", "sector", "correlation"]
            }
          },
          "risk": {"type": "object"},
          "default": {"type": "boolean"}
        },
        "additionalProperties": false
      }
    }
  }
}`

var compiledProfilesSchema = mustCompileSchema(profilesSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profiles.json", strings.NewReader(src)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("profiles.json")
}

// readAndValidate reads the profiles file and checks it against the schema.
// YAML is round-tripped through JSON so the validator sees JSON-typed values.
func readAndValidate(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles failed: %w", err)
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing profiles failed: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonBytes, &jsonDoc); err != nil {
		return nil, err
	}
	if err := compiledProfilesSchema.Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("profiles schema violation: %w", err)
	}
	return raw, nil
}

// decimalDecodeHook lets risk overrides express decimal fields as YAML
// numbers or strings.
func decimalDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch val := data.(type) {
	case string:
		return decimal.NewFromString(val)
	case float64:
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return data, nil
	}
}
