package content

import "fmt"

// ConditionType selects what a Condition inspects.
type ConditionType string

const (
	ConditionFlag     ConditionType = "flag"
	ConditionVariable ConditionType = "variable" // Same store as flags
	ConditionPath     ConditionType = "path"
)

// Condition gates a choice on the current path or a flag value.
type Condition struct {
	Type     ConditionType `json:"type" yaml:"type"`
	Key      string        `json:"key,omitempty" yaml:"key,omitempty"`
	Operator string        `json:"operator" yaml:"operator"`
	Value    any           `json:"value" yaml:"value"`
}

var operators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
}

// check returns a description of what is wrong with the condition, or "".
func (c *Condition) check() string {
	switch c.Type {
	case ConditionFlag, ConditionVariable:
		if c.Key == "" {
			return "condition key is required for flag conditions"
		}
	case ConditionPath:
	default:
		return fmt.Sprintf("unknown condition type %q", c.Type)
	}
	if !operators[c.Operator] {
		return fmt.Sprintf("unknown condition operator %q", c.Operator)
	}
	if _, ok := NormalizeFlagValue(c.Value); !ok {
		return fmt.Sprintf("condition value %v must be a bool, number or string", c.Value)
	}
	return ""
}

// Holds evaluates the condition against the current flags and path.
// A flag that has never been set only satisfies "!=".
func (c *Condition) Holds(flags map[string]any, path Path) bool {
	want, ok := NormalizeFlagValue(c.Value)
	if !ok {
		return false
	}

	var have any
	switch c.Type {
	case ConditionPath:
		have = string(path)
	case ConditionFlag, ConditionVariable:
		v, exists := flags[c.Key]
		if !exists {
			return c.Operator == "!="
		}
		have, _ = NormalizeFlagValue(v)
	default:
		return false
	}

	switch h := have.(type) {
	case float64:
		w, isNum := want.(float64)
		if !isNum {
			return c.Operator == "!="
		}
		return compareNumbers(h, w, c.Operator)
	default:
		switch c.Operator {
		case "==":
			return have == want
		case "!=":
			return have != want
		}
		return false
	}
}

func compareNumbers(a, b float64, op string) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	}
	return false
}

// NormalizeFlagValue converts a decoded flag value to bool, string or float64.
// JSON and YAML decoders disagree on number types, so every number becomes a
// float64.
func NormalizeFlagValue(v any) (any, bool) {
	switch x := v.(type) {
	case bool, string, float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return nil, false
}
