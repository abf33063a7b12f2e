package schema

// Builtin returns a registry populated with the resource types the
// bundled providers implement.
func Builtin() *Registry {
	r := NewRegistry()
	for _, rt := range builtinTypes {
		if err := r.Register(rt); err != nil {
			panic(err)
		}
	}
	return r
}

var builtinTypes = []*ResourceType{
	{
		Name:     "aws_vpc",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"cidrBlock": {Type: TypeString, Required: true, Immutable: true},
			"tags":      {Type: TypeMap},
		},
	},
	{
		Name:     "aws_subnet",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"vpcId":               {Type: TypeString, Required: true, Immutable: true},
			"cidrBlock":           {Type: TypeString, Required: true, Immutable: true},
			"availabilityZone":    {Type: TypeString, Immutable: true},
			"mapPublicIpOnLaunch": {Type: TypeBool, Default: false},
			"tags":                {Type: TypeMap},
		},
	},
	{
		Name:     "aws_security_group",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"name":        {Type: TypeString, Required: true, Immutable: true},
			"description": {Type: TypeString, Default: "Managed by weft", Immutable: true},
			"vpcId":       {Type: TypeString, Required: true, Immutable: true},
			"ingress":     {Type: TypeList},
			"egress":      {Type: TypeList},
		},
	},
	{
		Name:     "aws_internet_gateway",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"vpcId": {Type: TypeString, Required: true, Immutable: true},
			"tags":  {Type: TypeMap},
		},
	},
	{
		Name:     "aws_route_table",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"vpcId":  {Type: TypeString, Required: true, Immutable: true},
			"routes": {Type: TypeList},
			"tags":   {Type: TypeMap},
		},
	},
	{
		Name:     "aws_key_pair",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"name":      {Type: TypeString, Required: true, Immutable: true},
			"publicKey": {Type: TypeString, Required: true, Immutable: true},
		},
	},
	{
		Name:     "aws_instance",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"imageId":          {Type: TypeString, Required: true, Immutable: true},
			"instanceType":     {Type: TypeString, Required: true},
			"subnetId":         {Type: TypeString, Immutable: true},
			"keyName":          {Type: TypeString, Immutable: true},
			"securityGroupIds": {Type: TypeList},
			// Opaque first-boot script handed to the provider; never
			// interpreted by the engine.
			"userData": {Type: TypeString, Immutable: true},
			"tags":     {Type: TypeMap},
		},
	},
	{
		Name:     "aws_eip",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"instanceId": {Type: TypeString},
			"tags":       {Type: TypeMap},
		},
	},
	{
		Name:     "aws_db_instance",
		Provider: "aws",
		Attributes: map[string]Attribute{
			"identifier":         {Type: TypeString, Required: true, Immutable: true},
			"engine":             {Type: TypeString, Required: true, Immutable: true},
			"engineVersion":      {Type: TypeString},
			"instanceClass":      {Type: TypeString, Required: true},
			"allocatedStorage":   {Type: TypeNumber, Default: 20},
			"masterUsername":     {Type: TypeString, Required: true, Immutable: true},
			"masterPassword":     {Type: TypeString, Required: true, Sensitive: true},
			"subnetIds":          {Type: TypeList},
			"securityGroupIds":   {Type: TypeList},
			"publiclyAccessible": {Type: TypeBool, Default: false},
			"tags":               {Type: TypeMap},
		},
	},
	{
		Name:     "postgres_role",
		Provider: "postgres",
		Attributes: map[string]Attribute{
			"name":     {Type: TypeString, Required: true, Immutable: true},
			"password": {Type: TypeString, Sensitive: true},
			"login":    {Type: TypeBool, Default: true},
		},
	},
	{
		Name:     "postgres_database",
		Provider: "postgres",
		Attributes: map[string]Attribute{
			"name":  {Type: TypeString, Required: true, Immutable: true},
			"owner": {Type: TypeString},
		},
	},
	{
		Name:     "postgres_grant",
		Provider: "postgres",
		Attributes: map[string]Attribute{
			"role":       {Type: TypeString, Required: true, Immutable: true},
			"database":   {Type: TypeString, Required: true, Immutable: true},
			"privileges": {Type: TypeList, Required: true},
		},
	},
	{
		Name:     "null_resource",
		Provider: "null",
		Attributes: map[string]Attribute{
			"triggers": {Type: TypeMap},
		},
	},
}
