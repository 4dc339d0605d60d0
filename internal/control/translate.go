package control

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/btdsl/internal/tree"
)

// UnsupportedValueError reports a pushed condition value that cannot be
// translated into a status.
type UnsupportedValueError struct {
	Condition string
	Value     any
	// Err is the expression failure, if the condition has an expression.
	Err error
}

func (e *UnsupportedValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("condition %q: cannot translate value %v: %v", e.Condition, e.Value, e.Err)
	}
	return fmt.Sprintf("condition %q: unsupported value %v (%T)", e.Condition, e.Value, e.Value)
}

func (e *UnsupportedValueError) Unwrap() error { return e.Err }

// ExprEnv is the environment condition expressions are evaluated in.
type ExprEnv struct {
	Value any    `expr:"value"`
	Name  string `expr:"name"`
}

// Translator turns pushed condition values into condition statuses.
//
// Conditions with a configured expression are SUCCESS when it evaluates to
// true. Otherwise a bool maps directly and a number is SUCCESS when non-zero.
type Translator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewTranslator compiles expressions, keyed by condition name.
func NewTranslator(expressions map[string]string) (*Translator, error) {
	t := &Translator{programs: make(map[string]*vm.Program, len(expressions))}
	for name, expression := range expressions {
		if err := t.SetExpression(name, expression); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetExpression compiles expression and uses it for name from now on.
func (t *Translator) SetExpression(name, expression string) error {
	program, err := expr.Compile(expression,
		expr.Env(ExprEnv{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return fmt.Errorf("condition %q: invalid expression: %w", name, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.programs[name] = program
	return nil
}

// Translate returns the status value stands for, or an *UnsupportedValueError.
func (t *Translator) Translate(name string, value any) (tree.Status, error) {
	value = normalize(value)

	t.mu.RLock()
	program := t.programs[name]
	t.mu.RUnlock()

	if program != nil {
		result, err := expr.Run(program, ExprEnv{Value: value, Name: name})
		if err != nil {
			slog.Debug("condition expression failed", "condition", name, "value", fmt.Sprintf("%v", value), "error", err)
			return tree.Failed, &UnsupportedValueError{Condition: name, Value: value, Err: err}
		}
		b, ok := result.(bool)
		if !ok {
			return tree.Failed, &UnsupportedValueError{Condition: name, Value: value, Err: fmt.Errorf("expression returned %T", result)}
		}
		return boolStatus(b), nil
	}

	switch v := value.(type) {
	case bool:
		return boolStatus(v), nil
	case int64:
		return boolStatus(v != 0), nil
	case float64:
		return boolStatus(v != 0), nil
	}
	return tree.Failed, &UnsupportedValueError{Condition: name, Value: value}
}

// normalize folds JSON and Go numbers into int64 or float64.
func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return normalizeUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return normalizeUint(v)
	case float32:
		return float64(v)
	}
	return value
}

// normalizeUint keeps values past math.MaxInt64 as float64 rather than
// wrapping them negative.
func normalizeUint(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}

func boolStatus(b bool) tree.Status {
	if b {
		return tree.Success
	}
	return tree.Failed
}
