package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/weft-io/weft/internal/provider"
)

type vpcConfig struct {
	CidrBlock string            `json:"cidrBlock"`
	Tags      map[string]string `json:"tags"`
}

type vpcState struct {
	ID        string            `json:"id"`
	CidrBlock string            `json:"cidrBlock"`
	Tags      map[string]string `json:"tags,omitempty"`
}

func (p *Provider) applyVpc(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired vpcConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	if req.Action == provider.ActionUpdate {
		var prior vpcState
		if err := json.Unmarshal(req.PriorStateJSON, &prior); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		// Only tags are mutable in place.
		if err := p.tagResource(ctx, prior.ID, desired.Tags); err != nil {
			return nil, err
		}
		prior.Tags = desired.Tags
		stateJSON, _ := json.Marshal(prior)
		return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: &desired.CidrBlock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}

	if err := p.tagResource(ctx, *resp.Vpc.VpcId, desired.Tags); err != nil {
		return nil, err
	}

	newState := vpcState{
		ID:        *resp.Vpc.VpcId,
		CidrBlock: *resp.Vpc.CidrBlock,
		Tags:      desired.Tags,
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) readVpc(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current vpcState
	if err := json.Unmarshal(req.CurrentStateJSON, &current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{current.ID},
	})
	if err != nil {
		if isNotFound(err, "InvalidVpcID.NotFound") {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to describe VPC: %w", err)
	}
	if len(resp.Vpcs) == 0 {
		return &provider.ReadResponse{Exists: false}, nil
	}

	current.CidrBlock = *resp.Vpcs[0].CidrBlock
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteVpc(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior vpcState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID != "" {
		if _, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: &prior.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete VPC: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

type subnetConfig struct {
	VpcID               string            `json:"vpcId"`
	CidrBlock           string            `json:"cidrBlock"`
	AvailabilityZone    string            `json:"availabilityZone"`
	MapPublicIpOnLaunch bool              `json:"mapPublicIpOnLaunch"`
	Tags                map[string]string `json:"tags"`
}

type subnetState struct {
	ID        string `json:"id"`
	VpcID     string `json:"vpcId"`
	CidrBlock string `json:"cidrBlock"`
}

func (p *Provider) applySubnet(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired subnetConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	if req.Action == provider.ActionUpdate {
		var prior subnetState
		if err := json.Unmarshal(req.PriorStateJSON, &prior); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if err := p.tagResource(ctx, prior.ID, desired.Tags); err != nil {
			return nil, err
		}
		stateJSON, _ := json.Marshal(prior)
		return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     &desired.VpcID,
		CidrBlock: &desired.CidrBlock,
	}
	if desired.AvailabilityZone != "" {
		input.AvailabilityZone = &desired.AvailabilityZone
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}

	if err := p.tagResource(ctx, *resp.Subnet.SubnetId, desired.Tags); err != nil {
		return nil, err
	}

	if desired.MapPublicIpOnLaunch {
		_, _ = p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            resp.Subnet.SubnetId,
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}

	newState := subnetState{
		ID:        *resp.Subnet.SubnetId,
		VpcID:     *resp.Subnet.VpcId,
		CidrBlock: *resp.Subnet.CidrBlock,
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior subnetState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID != "" {
		if _, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: &prior.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete subnet: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

type securityGroupRule struct {
	FromPort   int      `json:"fromPort"`
	ToPort     int      `json:"toPort"`
	Protocol   string   `json:"protocol"`
	CidrBlocks []string `json:"cidrBlocks"`
}

type securityGroupConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	VpcID       string              `json:"vpcId"`
	Ingress     []securityGroupRule `json:"ingress"`
	Egress      []securityGroupRule `json:"egress"`
}

type securityGroupState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Provider) applySecurityGroup(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired securityGroupConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	if req.Action == provider.ActionUpdate {
		// Rule updates in place are revoke-then-authorize; keep state.
		var prior securityGroupState
		if err := json.Unmarshal(req.PriorStateJSON, &prior); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
		}
		if err := p.syncSecurityGroupRules(ctx, prior.ID, desired); err != nil {
			return nil, err
		}
		stateJSON, _ := json.Marshal(prior)
		return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
	}

	input := &ec2.CreateSecurityGroupInput{
		GroupName:   &desired.Name,
		Description: &desired.Description,
	}
	if desired.VpcID != "" {
		input.VpcId = &desired.VpcID
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := *resp.GroupId

	if err := p.syncSecurityGroupRules(ctx, groupID, desired); err != nil {
		return nil, err
	}

	newState := securityGroupState{ID: groupID, Name: desired.Name}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) syncSecurityGroupRules(ctx context.Context, groupID string, desired securityGroupConfig) error {
	if len(desired.Ingress) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       &groupID,
			IpPermissions: toIPPermissions(desired.Ingress),
		})
		if err != nil && !isNotFound(err, "InvalidPermission.Duplicate") {
			return fmt.Errorf("failed to authorize ingress: %w", err)
		}
	}
	if len(desired.Egress) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       &groupID,
			IpPermissions: toIPPermissions(desired.Egress),
		})
		if err != nil && !isNotFound(err, "InvalidPermission.Duplicate") {
			return fmt.Errorf("failed to authorize egress: %w", err)
		}
	}
	return nil
}

func toIPPermissions(rules []securityGroupRule) []types.IpPermission {
	var perms []types.IpPermission
	for _, rule := range rules {
		var ipRanges []types.IpRange
		for _, cidr := range rule.CidrBlocks {
			ipRanges = append(ipRanges, types.IpRange{CidrIp: aws.String(cidr)})
		}
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
			FromPort:   aws.Int32(int32(rule.FromPort)),
			ToPort:     aws.Int32(int32(rule.ToPort)),
			IpRanges:   ipRanges,
		})
	}
	return perms
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior securityGroupState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID != "" {
		if _, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: &prior.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete security group: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

type internetGatewayConfig struct {
	VpcID string            `json:"vpcId"`
	Tags  map[string]string `json:"tags"`
}

type internetGatewayState struct {
	ID    string `json:"id"`
	VpcID string `json:"vpcId"`
}

func (p *Provider) applyInternetGateway(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired internetGatewayConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := *resp.InternetGateway.InternetGatewayId

	if _, err := p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: &igwID,
		VpcId:             &desired.VpcID,
	}); err != nil {
		return nil, fmt.Errorf("failed to attach internet gateway: %w", err)
	}

	if err := p.tagResource(ctx, igwID, desired.Tags); err != nil {
		return nil, err
	}

	newState := internetGatewayState{ID: igwID, VpcID: desired.VpcID}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior internetGatewayState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID == "" {
		return &provider.DeleteResponse{}, nil
	}

	if prior.VpcID != "" {
		if _, err := p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: &prior.ID,
			VpcId:             &prior.VpcID,
		}); err != nil {
			return nil, fmt.Errorf("failed to detach internet gateway: %w", err)
		}
	}
	if _, err := p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: &prior.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to delete internet gateway: %w", err)
	}
	return &provider.DeleteResponse{}, nil
}

type routeConfig struct {
	DestinationCidrBlock string `json:"destinationCidrBlock"`
	GatewayID            string `json:"gatewayId,omitempty"`
	NatGatewayID         string `json:"natGatewayId,omitempty"`
}

type routeTableConfig struct {
	VpcID  string            `json:"vpcId"`
	Routes []routeConfig     `json:"routes"`
	Tags   map[string]string `json:"tags"`
}

type routeTableState struct {
	ID string `json:"id"`
}

func (p *Provider) applyRouteTable(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired routeTableConfig
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId: &desired.VpcID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := *resp.RouteTable.RouteTableId

	for _, route := range desired.Routes {
		input := &ec2.CreateRouteInput{
			RouteTableId:         &rtID,
			DestinationCidrBlock: &route.DestinationCidrBlock,
		}
		if route.GatewayID != "" {
			input.GatewayId = &route.GatewayID
		}
		if route.NatGatewayID != "" {
			input.NatGatewayId = &route.NatGatewayID
		}
		if _, err := p.ec2Client.CreateRoute(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to create route %s: %w", route.DestinationCidrBlock, err)
		}
	}

	if err := p.tagResource(ctx, rtID, desired.Tags); err != nil {
		return nil, err
	}

	newState := routeTableState{ID: rtID}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior routeTableState
	if err := json.Unmarshal(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	if prior.ID != "" {
		if _, err := p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: &prior.ID}); err != nil {
			return nil, fmt.Errorf("failed to delete route table: %w", err)
		}
	}
	return &provider.DeleteResponse{}, nil
}

// tagResource applies tags to an EC2-family resource, ignoring empty
// tag maps.
func (p *Provider) tagResource(ctx context.Context, id string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	var ec2Tags []types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	if _, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	}); err != nil {
		return fmt.Errorf("failed to tag %s: %w", id, err)
	}
	return nil
}

// isNotFound matches a specific AWS API error code.
func isNotFound(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}
