// Package eval turns Pkl template text into the engine's intermediate
// representation: it evaluates modules, resolves variable values, and
// validates the result against the resource type schemas.
package eval

import (
	"context"
	"fmt"
	"net/url"

	"github.com/apple/pkl-go/pkl"
	"github.com/go-playground/validator/v10"

	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/schema"
)

// Evaluator handles Pkl evaluation into IR types.
type Evaluator struct {
	projectDir string
	validate   *validator.Validate
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
		validate:   validator.New(),
	}
}

// LoadConfig evaluates the entry point module and returns the raw IR.
// Variable and reference resolution happen afterwards, in Resolve.
func (e *Evaluator) LoadConfig(ctx context.Context, entryPoint string, properties map[string]string) (*ir.Config, error) {
	u, err := url.Parse("file://" + e.projectDir + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse project directory URL: %w", err)
	}

	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewProjectEvaluator(ctx, u, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg ir.Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(entryPoint), &cfg); err != nil {
		return nil, &ParseError{File: entryPoint, Err: err}
	}

	for _, res := range cfg.Resources {
		if err := e.validate.Struct(res); err != nil {
			return nil, &ParseError{File: entryPoint, Err: fmt.Errorf("resource %s: %w", res.Addr(), err)}
		}
	}

	return &cfg, nil
}

// Resolve substitutes variable values into resource properties, fills
// schema defaults, and checks that every embedded reference names a
// resource declared in the configuration. It mutates cfg in place.
func Resolve(cfg *ir.Config, vars map[string]string, reg *schema.Registry) error {
	if err := resolveVariables(cfg, vars); err != nil {
		return err
	}

	declared := make(map[string]bool, len(cfg.Resources))
	for _, res := range cfg.Resources {
		declared[res.Addr()] = true
	}

	for _, res := range cfg.Resources {
		rt, err := reg.Get(res.Type)
		if err != nil {
			return err
		}
		res.Properties = rt.ApplyDefaults(res.Properties)
		if err := rt.Validate(res.Properties); err != nil {
			return err
		}

		for _, ref := range ir.CollectRefs(res.Properties) {
			if !declared[ref.Addr()] {
				return &UnresolvedReferenceError{Source: res.Addr(), Reference: ref.Addr()}
			}
		}
		for _, dep := range res.DependsOn {
			if !declared[dep] {
				return &UnresolvedReferenceError{Source: res.Addr(), Reference: dep}
			}
		}
	}

	return nil
}
