package expression

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles and caches expr-lang programs used as automation conditions.
// Programs are compiled against a map environment, so any env passed to
// EvaluateBool must also be a map[string]any.
type Engine struct {
	mu           sync.RWMutex
	programCache map[string]*vm.Program
	now          func() time.Time
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
		now:          time.Now,
	}
}

// EvaluateBool runs a condition. An empty expression is true.
func (e *Engine) EvaluateBool(expression string, env map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", expression, out)
	}
	return b, nil
}

// Validate compiles a condition without running it.
func (e *Engine) Validate(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	_, err := e.program(expression)
	return err
}

func (e *Engine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := e.programCache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prog, ok := e.programCache[expression]; ok {
		return prog, nil
	}

	options := append([]expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	}, e.builtins()...)

	prog, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	e.programCache[expression] = prog
	return prog, nil
}

func (e *Engine) builtins() []expr.Option {
	return []expr.Option{
		expr.Function("TODAY", func(params ...any) (any, error) {
			return e.now().UTC().Format(time.DateOnly), nil
		}),
		expr.Function("NOW", func(params ...any) (any, error) {
			return e.now().UTC().Format(time.DateTime), nil
		}),
		expr.Function("UPPER", func(params ...any) (any, error) {
			s, err := oneString("UPPER", params)
			if err != nil {
				return nil, err
			}
			return strings.ToUpper(s), nil
		}),
		expr.Function("LOWER", func(params ...any) (any, error) {
			s, err := oneString("LOWER", params)
			if err != nil {
				return nil, err
			}
			return strings.ToLower(s), nil
		}),
		expr.Function("LEN", func(params ...any) (any, error) {
			s, err := oneString("LEN", params)
			if err != nil {
				return nil, err
			}
			return len(s), nil
		}),
		// DAYS_UNTIL("2024-05-01") is negative for dates in the past.
		expr.Function("DAYS_UNTIL", func(params ...any) (any, error) {
			s, err := oneString("DAYS_UNTIL", params)
			if err != nil {
				return nil, err
			}
			t, err := parseDate(s)
			if err != nil {
				return nil, fmt.Errorf("DAYS_UNTIL: %w", err)
			}
			today := e.now().UTC().Truncate(24 * time.Hour)
			return int(t.UTC().Truncate(24*time.Hour).Sub(today).Hours() / 24), nil
		}),
		expr.Function("IF", func(params ...any) (any, error) {
			if len(params) != 3 {
				return nil, fmt.Errorf("IF requires 3 arguments (condition, true_value, false_value)")
			}
			cond, ok := params[0].(bool)
			if !ok {
				return nil, fmt.Errorf("IF condition must be boolean")
			}
			if cond {
				return params[1], nil
			}
			return params[2], nil
		}),
	}
}

func oneString(fn string, params []any) (string, error) {
	if len(params) != 1 {
		return "", fmt.Errorf("%s requires 1 argument", fn)
	}
	if params[0] == nil {
		return "", nil
	}
	s, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("%s argument must be string", fn)
	}
	return s, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
