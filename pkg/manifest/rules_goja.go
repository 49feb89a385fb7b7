package manifest

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/aretw0/rux/pkg/domain"
)

// jsTimeout interrupts a script that does not return in time.
const jsTimeout = 250 * time.Millisecond

// jsRule is a compiled JavaScript expression. The program is shared; every
// evaluation gets a fresh runtime.
type jsRule struct {
	source  string
	program *goja.Program
}

func compileJS(subject, expression string) (*jsRule, error) {
	program, err := goja.Compile(subject, fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "invalid js expression", Err: err}
	}
	return &jsRule{source: expression, program: program}, nil
}

func (r *jsRule) eval(env map[string]any) (any, error) {
	vm := goja.New()
	for name, value := range env {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("evaluate %q: bind %s: %w", r.source, name, err)
		}
	}

	timer := time.AfterFunc(jsTimeout, func() { vm.Interrupt("timeout") })
	defer timer.Stop()

	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", r.source, err)
	}
	return value.Export(), nil
}
