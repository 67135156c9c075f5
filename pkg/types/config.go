package types

// ProjectConfig is the top-level standbyprobe.yaml configuration.
type ProjectConfig struct {
	Region         string            `yaml:"region"`
	ResourcePrefix string            `yaml:"resourcePrefix"`
	LogLevel       string            `yaml:"logLevel,omitempty"`
	LogFormat      string            `yaml:"logFormat,omitempty"` // "json" or "text"
	InstanceType   string            `yaml:"instanceType"`
	AMIs           map[string]string `yaml:"amis"` // region -> AMI id
	Scenarios      []ScenarioConfig  `yaml:"scenarios,omitempty"`
	Polling        PollingConfig     `yaml:"polling,omitempty"`
	Store          *DynamoDBConfig   `yaml:"store,omitempty"`
	Alerts         []AlertConfig     `yaml:"alerts,omitempty"`
	Telemetry      TelemetryConfig   `yaml:"telemetry,omitempty"`

	// Dir is the directory the config was loaded from. Relative document
	// and template paths resolve against it.
	Dir string `yaml:"-"`
}

// AMI returns the configured AMI for the project region.
func (c *ProjectConfig) AMI() string {
	return c.AMIs[c.Region]
}

// ScenarioConfig describes one automation document test.
type ScenarioConfig struct {
	Name           string       `yaml:"name" json:"name"`
	Kind           ScenarioKind `yaml:"kind" json:"kind"`
	DocumentName   string       `yaml:"documentName,omitempty" json:"documentName,omitempty"`
	DocumentFile   string       `yaml:"documentFile" json:"documentFile"`
	DocumentFormat string       `yaml:"documentFormat,omitempty" json:"documentFormat,omitempty"`
	StackName      string       `yaml:"stackName,omitempty" json:"stackName,omitempty"`
	TemplateFile   string       `yaml:"templateFile" json:"templateFile"`
	RoleName       string       `yaml:"roleName,omitempty" json:"roleName,omitempty"`
	Ignore         []string     `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Expected       []string     `yaml:"expected,omitempty" json:"expected,omitempty"`
}

// PollingConfig holds polling intervals and wait budgets as duration strings.
type PollingConfig struct {
	StateInterval     string `yaml:"stateInterval,omitempty"`     // default 5s
	StateMaxWait      string `yaml:"stateMaxWait,omitempty"`      // default 60s
	InstanceInterval  string `yaml:"instanceInterval,omitempty"`  // default 10s
	InstanceMaxWait   string `yaml:"instanceMaxWait,omitempty"`   // default 30m
	ExecutionInterval string `yaml:"executionInterval,omitempty"` // default 5s
	ExecutionMaxWait  string `yaml:"executionMaxWait,omitempty"`  // default 30m
}

// DynamoDBConfig configures the DynamoDB result store.
type DynamoDBConfig struct {
	TableName    string `yaml:"tableName" json:"tableName"`
	Region       string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	RetentionTTL string `yaml:"retentionTtl,omitempty" json:"retentionTtl,omitempty"`
	CreateTable  bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
	Bucket   string    `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix   string    `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// TelemetryConfig controls OTLP export of metrics and traces.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}
