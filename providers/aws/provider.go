// Package aws implements the provider for Amazon Web Services
// resources: networking, compute, and managed databases.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/weft-io/weft/internal/provider"
)

func init() {
	provider.Register("aws", func() provider.Provider { return New() })
}

type Provider struct {
	mu     sync.Mutex
	region string

	ec2Client *ec2.Client
	rdsClient *rds.Client
}

func New() *Provider {
	return &Provider{region: "us-east-1"}
}

type providerConfig struct {
	Region  string `json:"region"`
	Profile string `json:"profile"`
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) (*provider.ConfigureResponse, error) {
	var cfg providerConfig
	if len(req.ConfigJSON) > 0 {
		if err := json.Unmarshal(req.ConfigJSON, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provider config: %w", err)
		}
	}
	if cfg.Region != "" {
		p.mu.Lock()
		p.region = cfg.Region
		p.mu.Unlock()
	}

	if err := p.ensureClients(ctx); err != nil {
		return &provider.ConfigureResponse{
			Diagnostics: []*provider.Diagnostic{{
				Severity: provider.SeverityError,
				Summary:  "Failed to load AWS config",
				Detail:   err.Error(),
			}},
		}, nil
	}
	return &provider.ConfigureResponse{}, nil
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ec2Client != nil && p.rdsClient != nil {
		return nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %w", err)
	}

	p.ec2Client = ec2.NewFromConfig(cfg)
	p.rdsClient = rds.NewFromConfig(cfg)
	return nil
}

func (p *Provider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	if len(req.PriorStateJSON) == 0 {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	changed, err := provider.DiffAttributes(req.DesiredConfigJSON, req.PriorStateJSON)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return &provider.PlanResponse{Action: provider.ActionNoop}, nil
	}
	return &provider.PlanResponse{
		Action:            provider.ActionUpdate,
		ChangedAttributes: changed,
	}, nil
}

func (p *Provider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws_vpc":
		return p.applyVpc(ctx, req)
	case "aws_subnet":
		return p.applySubnet(ctx, req)
	case "aws_security_group":
		return p.applySecurityGroup(ctx, req)
	case "aws_internet_gateway":
		return p.applyInternetGateway(ctx, req)
	case "aws_route_table":
		return p.applyRouteTable(ctx, req)
	case "aws_key_pair":
		return p.applyKeyPair(ctx, req)
	case "aws_instance":
		return p.applyInstance(ctx, req)
	case "aws_eip":
		return p.applyElasticIP(ctx, req)
	case "aws_db_instance":
		return p.applyDBInstance(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported resource type: %s", req.Type)
	}
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws_vpc":
		return p.readVpc(ctx, req)
	case "aws_instance":
		return p.readInstance(ctx, req)
	case "aws_db_instance":
		return p.readDBInstance(ctx, req)
	default:
		// No cheap describe call wired up; trust the recorded state.
		return &provider.ReadResponse{Exists: true, NewStateJSON: req.CurrentStateJSON}, nil
	}
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws_vpc":
		return p.deleteVpc(ctx, req)
	case "aws_subnet":
		return p.deleteSubnet(ctx, req)
	case "aws_security_group":
		return p.deleteSecurityGroup(ctx, req)
	case "aws_internet_gateway":
		return p.deleteInternetGateway(ctx, req)
	case "aws_route_table":
		return p.deleteRouteTable(ctx, req)
	case "aws_key_pair":
		return p.deleteKeyPair(ctx, req)
	case "aws_instance":
		return p.deleteInstance(ctx, req)
	case "aws_eip":
		return p.deleteElasticIP(ctx, req)
	case "aws_db_instance":
		return p.deleteDBInstance(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported resource type: %s", req.Type)
	}
}
