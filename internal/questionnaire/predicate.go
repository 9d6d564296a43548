package questionnaire

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate is a named boolean condition over answer values, compiled once
// when the catalog loads.
type Predicate struct {
	Name    string
	Source  string
	program *vm.Program
}

func compilePredicate(name, src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("predicate %s: %w", name, err)
	}
	return &Predicate{Name: name, Source: src, program: program}, nil
}

// Eval runs the predicate. Unset answers are nil.
func (p *Predicate) Eval(env map[string]any) (bool, error) {
	out, err := expr.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("predicate %s: %w", p.Name, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("predicate %s did not return a boolean", p.Name)
	}
	return b, nil
}

func evalAll(preds map[string]*Predicate, env map[string]any) (map[string]bool, error) {
	out := make(map[string]bool, len(preds))
	for name, p := range preds {
		v, err := p.Eval(env)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
