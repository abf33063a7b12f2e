package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
)

func init() {
	provider.Register("test", func() provider.Provider { return &fakeProvider{} })
}

// fakeProvider drives its behavior from the resource properties: a
// true "fail" property makes Apply error, a true "failDelete" property
// makes Delete error, and a true "vanished" output makes Read report
// the resource gone. Configure keeps the delivered settings and
// rejects them when "reject" is true.
type fakeProvider struct {
	lastConfig map[string]any
}

func (p *fakeProvider) Configure(ctx context.Context, req *provider.ConfigureRequest) (*provider.ConfigureResponse, error) {
	if len(req.ConfigJSON) > 0 {
		if err := json.Unmarshal(req.ConfigJSON, &p.lastConfig); err != nil {
			return nil, err
		}
	}
	if reject, _ := p.lastConfig["reject"].(bool); reject {
		return &provider.ConfigureResponse{
			Diagnostics: []*provider.Diagnostic{{
				Severity: provider.SeverityError,
				Summary:  "fake provider refused its settings",
			}},
		}, nil
	}
	return &provider.ConfigureResponse{}, nil
}

func (p *fakeProvider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.PriorStateJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}
	changed, err := provider.DiffAttributes(req.DesiredConfigJSON, req.PriorStateJSON)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return &provider.PlanResponse{Action: provider.ActionNoop}, nil
	}
	return &provider.PlanResponse{Action: provider.ActionUpdate, ChangedAttributes: changed}, nil
}

// applyHook, when set, runs inside Apply for resources carrying a true
// "hook" property, letting a test interfere with an in-flight run.
var applyHook func()

func (p *fakeProvider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var cfg map[string]any
	if err := json.Unmarshal(req.DesiredConfigJSON, &cfg); err != nil {
		return nil, err
	}
	if fail, _ := cfg["fail"].(bool); fail {
		return nil, fmt.Errorf("provider refused %s.%s", req.Type, req.Name)
	}
	if hook, _ := cfg["hook"].(bool); hook && applyHook != nil {
		applyHook()
	}

	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	out["id"] = fmt.Sprintf("test-%s", req.Name)
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &provider.ApplyResponse{NewStateJSON: data}, nil
}

func (p *fakeProvider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var state map[string]any
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &state); err != nil {
			return nil, err
		}
	}
	if vanished, _ := state["vanished"].(bool); vanished {
		return &provider.ReadResponse{Exists: false}, nil
	}
	return &provider.ReadResponse{Exists: true, NewStateJSON: req.CurrentStateJSON}, nil
}

func (p *fakeProvider) Delete(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var state map[string]any
	if len(req.CurrentStateJSON) > 0 {
		if err := json.Unmarshal(req.CurrentStateJSON, &state); err != nil {
			return nil, err
		}
	}
	if fail, _ := state["failDelete"].(bool); fail {
		return nil, fmt.Errorf("delete refused for %s.%s", req.Type, req.Name)
	}
	return &provider.DeleteResponse{}, nil
}

// testSchemas registers the resource type the fake provider manages.
func testSchemas() *schema.Registry {
	reg := schema.NewRegistry()
	_ = reg.Register(&schema.ResourceType{
		Name:     "test_thing",
		Provider: "test",
		Attributes: map[string]schema.Attribute{
			"size":       {Type: schema.TypeString, Immutable: true},
			"color":      {Type: schema.TypeString},
			"secret":     {Type: schema.TypeString, Sensitive: true},
			"tags":       {Type: schema.TypeMap},
			"fail":       {Type: schema.TypeBool},
			"failDelete": {Type: schema.TypeBool},
		},
	})
	return reg
}

func testEngine() *Engine {
	reg := provider.NewRegistry()
	return NewEngine(reg, testSchemas())
}

func indexOf(list []string, target string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}
