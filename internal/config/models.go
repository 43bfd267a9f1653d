package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	Metrics          Metrics
	Logs             Logs
	API              API
	Storage          Storage
	Webhooks         Webhooks
	SIEM             SIEM
	Enrollment       Enrollment
	Agents           Agents
	Ingest           Ingest
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

type API struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendValkey StorageBackend = "valkey"
)

type Storage struct {
	Backend         StorageBackend
	CampaignsFile   string
	EnrollmentsFile string
	Valkey          Valkey
}

type Valkey struct {
	URL            string
	CampaignsKey   string
	EnrollmentsKey string
	Creds          ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}

type Webhooks struct {
	BufferSize     int
	MaxConcurrency int
	RecentErrors   int
	Timeout        time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
	UserAgent      string
	Subscriptions  []Subscription
	DeadLetter     S3
}

// Subscription is a webhook registered at startup. Zero retry and timeout values fall back to the Webhooks ones.
type Subscription struct {
	URL       string
	Name      string
	Exchanges []string
	Queues    []string
	SinkType  string
	Headers   map[string]string

	RetryAttempts uint
	RetryDelay    time.Duration
	Timeout       time.Duration
}

type SIEM struct {
	Source  string
	Host    string
	Index   string
	Dataset string
	Tags    []string
}

type Enrollment struct {
	ServerURL    string
	DownloadPath string
	Group        string
	Contact      string
}

type AgentRegistryType string

const (
	AgentRegistryHTTP       AgentRegistryType = "http"
	AgentRegistryKubernetes AgentRegistryType = "kubernetes"
)

type Agents struct {
	Registry   AgentRegistryType
	HTTP       AgentsHTTP
	Kubernetes AgentsKubernetes
}

type AgentsHTTP struct {
	URL     string
	Timeout time.Duration
	Creds   APIKeyCreds
}

type APIKeyCreds struct {
	APIKey string
}

func (c APIKeyCreds) String() string {
	if c.APIKey != "" {
		return "api key set"
	}

	return "no api key"
}

type AgentsKubernetes struct {
	Kubeconfig     string
	Namespace      string
	LabelSelector  string
	TagsAnnotation string
}

type Ingest struct {
	Enabled         bool
	Kafka           Kafka
	Retry           Retry
	DeadLetterQueue S3
}

type Retry struct {
	MaxAttempt uint
	Delay      time.Duration
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker   KafkaBroker
	Consumer KafkaConsumer
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

// KafkaCreds enables SASL/SCRAM when User is set.
type KafkaCreds struct {
	User      string
	Password  string
	Mechanism string
	TLS       bool
}

func (c KafkaCreds) String() string {
	if c.User != "" {
		return "sasl " + c.Mechanism + " user " + c.User
	}

	return "no sasl"
}

type KafkaConsumer struct {
	Topic string
	Group string
}
