package manifest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/aretw0/rux/pkg/domain"
)

// celRule compiles its expression once per set of variable names, since a
// CEL environment declares every variable up front.
type celRule struct {
	source string

	mu       sync.Mutex
	programs map[string]cel.Program
}

func compileCEL(subject, expression string) (*celRule, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, err
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "invalid cel expression", Err: issues.Err()}
	}
	return &celRule{source: expression, programs: make(map[string]cel.Program)}, nil
}

func (r *celRule) program(env map[string]any) (cel.Program, error) {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	key := strings.Join(names, ",")

	r.mu.Lock()
	defer r.mu.Unlock()
	if prg, ok := r.programs[key]; ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := celEnv.Compile(r.source)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}
	r.programs[key] = prg
	return prg, nil
}

func (r *celRule) eval(env map[string]any) (any, error) {
	prg, err := r.program(env)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", r.source, err)
	}
	out, _, err := prg.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", r.source, err)
	}
	return out.Value(), nil
}
