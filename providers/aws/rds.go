package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/weft-io/weft/internal/provider"
)

type dbInstanceConfig struct {
	Identifier         string   `json:"identifier"`
	Engine             string   `json:"engine"`
	EngineVersion      string   `json:"engineVersion"`
	InstanceClass      string   `json:"instanceClass"`
	AllocatedStorage   int      `json:"allocatedStorage"`
	MasterUsername     string   `json:"masterUsername"`
	MasterPassword     string   `json:"masterPassword"`
	SecurityGroupIDs   []string `json:"securityGroupIds"`
	PubliclyAccessible bool     `json:"publiclyAccessible"`
}

type dbInstanceState struct {
	Identifier    string `json:"identifier"`
	ARN           string `json:"arn"`
	Endpoint      string `json:"endpoint,omitempty"`
	Port          int32  `json:"port,omitempty"`
	InstanceClass string `json:"instanceClass"`
	Engine        string `json:"engine"`
}

func (p *Provider) applyDBInstance(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired dbInstanceConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	if req.Action == provider.ActionUpdate {
		return p.modifyDBInstance(ctx, req, desired)
	}

	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: &desired.Identifier,
		Engine:               &desired.Engine,
		DBInstanceClass:      &desired.InstanceClass,
		AllocatedStorage:     aws.Int32(int32(desired.AllocatedStorage)),
		MasterUsername:       &desired.MasterUsername,
		MasterUserPassword:   &desired.MasterPassword,
		PubliclyAccessible:   &desired.PubliclyAccessible,
	}
	if desired.EngineVersion != "" {
		input.EngineVersion = &desired.EngineVersion
	}
	if len(desired.SecurityGroupIDs) > 0 {
		input.VpcSecurityGroupIds = desired.SecurityGroupIDs
	}

	resp, err := p.rdsClient.CreateDBInstance(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create db instance: %w", err)
	}

	// Databases take many minutes to come up; dependents need the
	// endpoint, so wait.
	waiter := rds.NewDBInstanceAvailableWaiter(p.rdsClient)
	if err := waiter.Wait(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: resp.DBInstance.DBInstanceIdentifier,
	}, 20*time.Minute); err != nil {
		return nil, fmt.Errorf("failed to wait for db instance available: %w", err)
	}

	newState, err := p.describeDBState(ctx, desired.Identifier)
	if err != nil {
		return nil, err
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) modifyDBInstance(ctx context.Context, req *provider.ApplyRequest, desired dbInstanceConfig) (*provider.ApplyResponse, error) {
	var prior dbInstanceState
	if err := json.Unmarshal(req.PriorStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}

	input := &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: &prior.Identifier,
		ApplyImmediately:     aws.Bool(true),
	}
	if desired.InstanceClass != prior.InstanceClass {
		input.DBInstanceClass = &desired.InstanceClass
	}
	if desired.AllocatedStorage > 0 {
		input.AllocatedStorage = aws.Int32(int32(desired.AllocatedStorage))
	}
	if desired.MasterPassword != "" {
		input.MasterUserPassword = &desired.MasterPassword
	}

	if _, err := p.rdsClient.ModifyDBInstance(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to modify db instance: %w", err)
	}

	waiter := rds.NewDBInstanceAvailableWaiter(p.rdsClient)
	if err := waiter.Wait(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &prior.Identifier,
	}, 20*time.Minute); err != nil {
		return nil, fmt.Errorf("failed to wait for db instance available: %w", err)
	}

	newState, err := p.describeDBState(ctx, prior.Identifier)
	if err != nil {
		return nil, err
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) readDBInstance(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current dbInstanceState
	if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	newState, err := p.describeDBState(ctx, current.Identifier)
	if err != nil {
		if isNotFound(err, "DBInstanceNotFound") {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, err
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ReadResponse{Exists: true, NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteDBInstance(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior dbInstanceState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.Identifier != "" {
		_, err := p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
			DBInstanceIdentifier: &prior.Identifier,
			SkipFinalSnapshot:    aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to delete db instance: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

func (p *Provider) describeDBState(ctx context.Context, identifier string) (*dbInstanceState, error) {
	resp, err := p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &identifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe db instance: %w", err)
	}
	if len(resp.DBInstances) == 0 {
		return nil, fmt.Errorf("db instance %s not found", identifier)
	}

	db := resp.DBInstances[0]
	state := &dbInstanceState{
		Identifier:    *db.DBInstanceIdentifier,
		ARN:           *db.DBInstanceArn,
		InstanceClass: *db.DBInstanceClass,
		Engine:        *db.Engine,
	}
	if db.Endpoint != nil {
		state.Endpoint = *db.Endpoint.Address
		if db.Endpoint.Port != nil {
			state.Port = *db.Endpoint.Port
		}
	}
	return state, nil
}
