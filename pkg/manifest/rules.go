package manifest

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/schema"
)

// Expression languages accepted by derive and reducer rules.
const (
	LangExpr = "expr"
	LangCEL  = "cel"
	LangJS   = "js"
)

// evaluator runs one compiled rule expression against an environment.
type evaluator interface {
	eval(env map[string]any) (any, error)
}

func compileRule(subject, lang, expression string) (evaluator, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "expression must not be empty"}
	}
	switch strings.ToLower(lang) {
	case "", LangExpr:
		return compileExpr(subject, expression)
	case LangCEL:
		return compileCEL(subject, expression)
	case LangJS:
		return compileJS(subject, expression)
	default:
		return nil, &domain.ConfigurationError{Subject: subject, Reason: fmt.Sprintf("unknown expression language %q", lang)}
	}
}

// exprRule is an expr-lang program.
type exprRule struct {
	program *exprvm.Program
	source  string
}

func compileExpr(subject, expression string) (*exprRule, error) {
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "invalid expression", Err: err}
	}
	return &exprRule{program: program, source: expression}, nil
}

// envKey is the expression variable holding a dependency value.
func envKey(p domain.StatePath) string {
	return p.Slice + "_" + p.Field
}

// fieldEnv exposes every field of inst by name.
func fieldEnv(inst *domain.Instance) map[string]any {
	return inst.Map()
}

func (r *exprRule) eval(env map[string]any) (any, error) {
	out, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", r.source, err)
	}
	return out, nil
}

// deriveReaction builds a reaction from a derive rule. The expression sees the
// slice's own fields, and each dependency both as Slice_field and as its bare
// field name (dependencies win over own fields).
func deriveReaction(slice string, spec DeriveSpec) (*domain.ExtraReducer, error) {
	subject := "derive " + slice + "." + spec.Name
	if spec.Set == "" {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "set is required"}
	}
	deps := make([]domain.StatePath, 0, len(spec.From))
	for _, raw := range spec.From {
		p, err := domain.ParsePath(raw)
		if err != nil {
			return nil, &domain.ConfigurationError{Subject: subject, Reason: "invalid dependency", Err: err}
		}
		deps = append(deps, p)
	}
	expression, err := compileRule(subject, spec.Lang, spec.Expr)
	if err != nil {
		return nil, err
	}

	return domain.NewValuesReaction(spec.Name, func(inst *domain.Instance, values []any) (*domain.Instance, error) {
		env := fieldEnv(inst)
		for i, dep := range deps {
			env[dep.Field] = values[i]
			env[envKey(dep)] = values[i]
		}
		out, err := expression.eval(env)
		if err != nil {
			return nil, err
		}
		return inst.Set(spec.Set, out)
	}, deps...), nil
}

// reducerFromSpec builds a reducer from a reducer rule.
func reducerFromSpec(slice string, spec ReducerSpec) (*domain.Reducer, error) {
	subject := "reducer " + slice + "." + spec.Name
	if spec.Set == "" {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "set is required"}
	}
	expression, err := compileRule(subject, spec.Lang, spec.Expr)
	if err != nil {
		return nil, err
	}

	if spec.Payload == "" {
		return domain.NewReducer(spec.Name, func(inst *domain.Instance) (*domain.Instance, error) {
			out, err := expression.eval(fieldEnv(inst))
			if err != nil {
				return nil, err
			}
			return inst.Set(spec.Set, out)
		}), nil
	}

	payloadType, err := schema.ParseType(spec.Payload)
	if err != nil {
		return nil, &domain.ConfigurationError{Subject: subject, Reason: "invalid payload type", Err: err}
	}
	return domain.NewPayloadReducer(spec.Name, func(inst *domain.Instance, payload any) (*domain.Instance, error) {
		v, err := schema.Coerce(payloadType, payload)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		env := fieldEnv(inst)
		env["payload"] = v
		out, err := expression.eval(env)
		if err != nil {
			return nil, err
		}
		return inst.Set(spec.Set, out)
	}), nil
}
