// Package expression evaluates task-template conditions with expr-lang/expr.
package expression

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles and caches boolean conditions.
// Programs are cached per expression and env shape since expr type-checks against the env.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
	now          func() time.Time
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
		now:          time.Now,
	}
}

// EvaluateBool runs condition against env. An empty condition is true.
func (e *Engine) EvaluateBool(condition string, env map[string]interface{}) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}
	program, err := e.getProgram(condition, env)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", condition, out)
	}
	return result, nil
}

// Validate compiles condition against a sample env
func (e *Engine) Validate(condition string, env map[string]interface{}) error {
	if strings.TrimSpace(condition) == "" {
		return nil
	}
	_, err := e.getProgram(strings.TrimSpace(condition), env)
	return err
}

func (e *Engine) getProgram(condition string, env map[string]interface{}) (*vm.Program, error) {
	key := cacheKey(condition, env)

	e.mu.RLock()
	if prog, ok := e.programCache[key]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programCache[key]; ok {
		return prog, nil
	}

	program, err := expr.Compile(condition,
		expr.Env(env),
		expr.AsBool(),
		expr.Function("LOWER", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LOWER requires 1 argument")
			}
			s, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("LOWER argument must be string")
			}
			return strings.ToLower(s), nil
		}),
		expr.Function("DAYS_SINCE", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("DAYS_SINCE requires 1 argument")
			}
			t, ok := params[0].(time.Time)
			if !ok {
				return nil, fmt.Errorf("DAYS_SINCE argument must be a time")
			}
			return int(e.now().Sub(t).Hours() / 24), nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", condition, err)
	}

	e.programCache[key] = program
	return program, nil
}

func cacheKey(condition string, env map[string]interface{}) string {
	keys := make([]string, 0, len(env))
	for k, v := range env {
		keys = append(keys, fmt.Sprintf("%s:%T", k, v))
	}
	sort.Strings(keys)
	return condition + "|" + strings.Join(keys, ",")
}
