package aws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/weft-io/weft/internal/provider"
)

type instanceConfig struct {
	ImageID          string            `json:"imageId"`
	InstanceType     string            `json:"instanceType"`
	SubnetID         string            `json:"subnetId"`
	KeyName          string            `json:"keyName"`
	SecurityGroupIDs []string          `json:"securityGroupIds"`
	UserData         string            `json:"userData"`
	Tags             map[string]string `json:"tags"`
}

type instanceState struct {
	ID           string            `json:"id"`
	ImageID      string            `json:"imageId"`
	InstanceType string            `json:"instanceType"`
	PublicIP     string            `json:"publicIp,omitempty"`
	PrivateIP    string            `json:"privateIp,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func (p *Provider) applyInstance(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired instanceConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	if req.Action == provider.ActionUpdate {
		return p.updateInstance(ctx, req, desired)
	}

	runInput := &ec2.RunInstancesInput{
		ImageId:      &desired.ImageID,
		InstanceType: types.InstanceType(desired.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if desired.SubnetID != "" {
		runInput.SubnetId = &desired.SubnetID
	}
	if desired.KeyName != "" {
		runInput.KeyName = &desired.KeyName
	}
	if len(desired.SecurityGroupIDs) > 0 {
		runInput.SecurityGroupIds = desired.SecurityGroupIDs
	}
	if desired.UserData != "" {
		// First-boot script passed through opaque; the API wants it
		// base64-encoded.
		runInput.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(desired.UserData)))
	}

	resp, err := p.ec2Client.RunInstances(ctx, runInput)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(resp.Instances) == 0 {
		return nil, fmt.Errorf("no instances created")
	}
	instanceID := *resp.Instances[0].InstanceId

	waiter := ec2.NewInstanceRunningWaiter(p.ec2Client)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}, 5*time.Minute); err != nil {
		return nil, fmt.Errorf("failed to wait for instance running: %w", err)
	}

	if err := p.tagResource(ctx, instanceID, desired.Tags); err != nil {
		return nil, err
	}

	newState := instanceState{
		ID:           instanceID,
		ImageID:      desired.ImageID,
		InstanceType: desired.InstanceType,
		Tags:         desired.Tags,
	}

	// IPs are assigned by the time the instance is running.
	describe, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err == nil && len(describe.Reservations) > 0 && len(describe.Reservations[0].Instances) > 0 {
		inst := describe.Reservations[0].Instances[0]
		if inst.PublicIpAddress != nil {
			newState.PublicIP = *inst.PublicIpAddress
		}
		if inst.PrivateIpAddress != nil {
			newState.PrivateIP = *inst.PrivateIpAddress
		}
	}

	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

// updateInstance handles in-place changes: instance type via
// stop-modify-start, tags via CreateTags.
func (p *Provider) updateInstance(ctx context.Context, req *provider.ApplyRequest, desired instanceConfig) (*provider.ApplyResponse, error) {
	var prior instanceState
	if err := json.Unmarshal(req.PriorStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}

	if desired.InstanceType != prior.InstanceType {
		if _, err := p.ec2Client.StopInstances(ctx, &ec2.StopInstancesInput{
			InstanceIds: []string{prior.ID},
		}); err != nil {
			return nil, fmt.Errorf("failed to stop instance for resize: %w", err)
		}
		stopWaiter := ec2.NewInstanceStoppedWaiter(p.ec2Client)
		if err := stopWaiter.Wait(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{prior.ID},
		}, 10*time.Minute); err != nil {
			return nil, fmt.Errorf("failed to wait for instance stop: %w", err)
		}

		if _, err := p.ec2Client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId:   &prior.ID,
			InstanceType: &types.AttributeValue{Value: &desired.InstanceType},
		}); err != nil {
			return nil, fmt.Errorf("failed to modify instance type: %w", err)
		}

		if _, err := p.ec2Client.StartInstances(ctx, &ec2.StartInstancesInput{
			InstanceIds: []string{prior.ID},
		}); err != nil {
			return nil, fmt.Errorf("failed to start instance after resize: %w", err)
		}
		runWaiter := ec2.NewInstanceRunningWaiter(p.ec2Client)
		if err := runWaiter.Wait(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{prior.ID},
		}, 10*time.Minute); err != nil {
			return nil, fmt.Errorf("failed to wait for instance start: %w", err)
		}
		prior.InstanceType = desired.InstanceType
	}

	if err := p.tagResource(ctx, prior.ID, desired.Tags); err != nil {
		return nil, err
	}
	prior.Tags = desired.Tags

	stateJSON, _ := json.Marshal(prior)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) readInstance(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current instanceState
	if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{current.ID},
	})
	if err != nil {
		if isNotFound(err, "InvalidInstanceID.NotFound") {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to describe instance: %w", err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return &provider.ReadResponse{Exists: false}, nil
	}

	inst := resp.Reservations[0].Instances[0]
	if inst.State.Name == types.InstanceStateNameTerminated {
		return &provider.ReadResponse{Exists: false}, nil
	}

	current.InstanceType = string(inst.InstanceType)
	if inst.PublicIpAddress != nil {
		current.PublicIP = *inst.PublicIpAddress
	}
	if inst.PrivateIpAddress != nil {
		current.PrivateIP = *inst.PrivateIpAddress
	}
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteInstance(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior instanceState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID != "" {
		if _, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
			InstanceIds: []string{prior.ID},
		}); err != nil {
			return nil, fmt.Errorf("failed to terminate instance: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

type keyPairConfig struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

type keyPairState struct {
	Name      string `json:"name"`
	KeyPairID string `json:"keyPairId"`
}

func (p *Provider) applyKeyPair(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired keyPairConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	resp, err := p.ec2Client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           &desired.Name,
		PublicKeyMaterial: []byte(desired.PublicKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import key pair: %w", err)
	}

	newState := keyPairState{Name: *resp.KeyName, KeyPairID: *resp.KeyPairId}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteKeyPair(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior keyPairState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.Name != "" {
		if _, err := p.ec2Client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: &prior.Name}); err != nil {
			return nil, fmt.Errorf("failed to delete key pair: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

type elasticIPConfig struct {
	InstanceID string            `json:"instanceId"`
	Tags       map[string]string `json:"tags"`
}

type elasticIPState struct {
	AllocationID  string `json:"allocationId"`
	PublicIP      string `json:"publicIp"`
	AssociationID string `json:"associationId,omitempty"`
	InstanceID    string `json:"instanceId,omitempty"`
}

func (p *Provider) applyElasticIP(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired elasticIPConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	var state elasticIPState
	if req.Action == provider.ActionUpdate && len(req.PriorStateJSON) > 0 {
		if err := json.Unmarshal(req.PriorStateJSON, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
	} else {
		resp, err := p.ec2Client.AllocateAddress(ctx, &ec2.AllocateAddressInput{
			Domain: types.DomainTypeVpc,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to allocate address: %w", err)
		}
		state.AllocationID = *resp.AllocationId
		state.PublicIP = *resp.PublicIp
	}

	if desired.InstanceID != "" && desired.InstanceID != state.InstanceID {
		assoc, err := p.ec2Client.AssociateAddress(ctx, &ec2.AssociateAddressInput{
			AllocationId: &state.AllocationID,
			InstanceId:   &desired.InstanceID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to associate address: %w", err)
		}
		state.AssociationID = *assoc.AssociationId
		state.InstanceID = desired.InstanceID
	}

	if err := p.tagResource(ctx, state.AllocationID, desired.Tags); err != nil {
		return nil, err
	}

	stateJSON, _ := json.Marshal(state)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteElasticIP(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior elasticIPState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.AssociationID != "" {
		if _, err := p.ec2Client.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{
			AssociationId: &prior.AssociationID,
		}); err != nil {
			return nil, fmt.Errorf("failed to disassociate address: %w", err)
		}
	}
	if prior.AllocationID != "" {
		if _, err := p.ec2Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
			AllocationId: &prior.AllocationID,
		}); err != nil {
			return nil, fmt.Errorf("failed to release address: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}
