package aws

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIPPermissions(t *testing.T) {
	perms := toIPPermissions([]securityGroupRule{
		{FromPort: 443, ToPort: 443, Protocol: "tcp", CidrBlocks: []string{"0.0.0.0/0", "10.0.0.0/8"}},
		{FromPort: 0, ToPort: 0, Protocol: "-1"},
	})

	require.Len(t, perms, 2)
	assert.Equal(t, "tcp", *perms[0].IpProtocol)
	assert.Equal(t, int32(443), *perms[0].FromPort)
	assert.Equal(t, int32(443), *perms[0].ToPort)
	require.Len(t, perms[0].IpRanges, 2)
	assert.Equal(t, "0.0.0.0/0", *perms[0].IpRanges[0].CidrIp)
	assert.Equal(t, "10.0.0.0/8", *perms[0].IpRanges[1].CidrIp)

	assert.Equal(t, "-1", *perms[1].IpProtocol)
	assert.Empty(t, perms[1].IpRanges)
}

func TestToIPPermissions_Empty(t *testing.T) {
	assert.Nil(t, toIPPermissions(nil))
}

func TestIsNotFound(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "InvalidVpcID.NotFound", Message: "vpc not found"}

	assert.True(t, isNotFound(apiErr, "InvalidVpcID.NotFound"))
	assert.True(t, isNotFound(fmt.Errorf("describe failed: %w", apiErr), "InvalidVpcID.NotFound"))
	assert.False(t, isNotFound(apiErr, "InvalidGroup.NotFound"))
	assert.False(t, isNotFound(errors.New("connection refused"), "InvalidVpcID.NotFound"))
	assert.False(t, isNotFound(nil, "InvalidVpcID.NotFound"))
}

func TestSecurityGroupConfig_Unmarshal(t *testing.T) {
	raw := []byte(`{
		"name": "web",
		"description": "web tier",
		"vpcId": "vpc-123",
		"ingress": [{"fromPort": 80, "toPort": 80, "protocol": "tcp", "cidrBlocks": ["0.0.0.0/0"]}]
	}`)

	var cfg securityGroupConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, "web", cfg.Name)
	assert.Equal(t, "vpc-123", cfg.VpcID)
	require.Len(t, cfg.Ingress, 1)
	assert.Equal(t, 80, cfg.Ingress[0].FromPort)
	assert.Empty(t, cfg.Egress)
}
