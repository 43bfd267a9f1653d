package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const prefix = "ORCHESTRATOR"

// Parse reads the configuration file given as parameter.
// Environment variables (optionally loaded from a .env file) override file values.
func Parse(confFile string) (*Config, error) {
	conf := Config{}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &conf, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefault(v)

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		v.SetConfigFile(confFile)

		err := v.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	err = validate(conf)
	if err != nil {
		return &conf, fmt.Errorf("invalid config: %w", err)
	}

	return &conf, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("gracefulDuration", "15s")

	v.SetDefault("logs.level", 4)
	v.SetDefault("logs.encoder", EncoderTypeConsole)

	v.SetDefault("metrics.port", 7777)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.readTimeout", "10s")
	v.SetDefault("api.writeTimeout", "10s")
	v.SetDefault("api.maxBodyBytes", 1<<20)

	v.SetDefault("storage.backend", StorageBackendFile)
	v.SetDefault("storage.campaignsFile", "data/campaigns.json")
	v.SetDefault("storage.enrollmentsFile", "data/enrollment_requests.json")
	v.SetDefault("storage.valkey.campaignsKey", "orchestrator:campaigns")
	v.SetDefault("storage.valkey.enrollmentsKey", "orchestrator:enrollments")

	v.SetDefault("webhooks.bufferSize", 1000)
	v.SetDefault("webhooks.maxConcurrency", 64)
	v.SetDefault("webhooks.recentErrors", 100)
	v.SetDefault("webhooks.timeout", "10s")
	v.SetDefault("webhooks.retryAttempts", 3)
	v.SetDefault("webhooks.retryDelay", "5s")
	v.SetDefault("webhooks.userAgent", "campaign-orchestrator-webhook/1.0")

	v.SetDefault("siem.source", "caldera")
	v.SetDefault("siem.index", "caldera-events")
	v.SetDefault("siem.dataset", "caldera.operations")
	v.SetDefault("siem.tags", []string{"caldera", "purple-team", "adversary-emulation"})

	v.SetDefault("enrollment.serverURL", "http://localhost:8888")
	v.SetDefault("enrollment.downloadPath", "/file/download")
	v.SetDefault("enrollment.group", "red")
	v.SetDefault("enrollment.contact", "http")

	v.SetDefault("agents.registry", AgentRegistryHTTP)
	v.SetDefault("agents.http.url", "http://localhost:8888")
	v.SetDefault("agents.http.timeout", "10s")
	v.SetDefault("agents.kubernetes.namespace", "default")
	v.SetDefault("agents.kubernetes.labelSelector", "app.kubernetes.io/component=agent")
	v.SetDefault("agents.kubernetes.tagsAnnotation", "orchestrator.purpleteam-labs.io/tags")

	v.SetDefault("ingest.kafka.broker.version", "3.6.0")
	v.SetDefault("ingest.kafka.broker.creds.mechanism", "SCRAM-SHA-512")
	v.SetDefault("ingest.kafka.consumer.group", "campaign-orchestrator")
	v.SetDefault("ingest.retry.maxAttempt", 5)
	v.SetDefault("ingest.retry.delay", "500ms")
}

func validate(conf Config) error {
	switch conf.Logs.Encoder {
	case EncoderTypeConsole, EncoderTypeJson:
	default:
		return fmt.Errorf("unexpected logs encoder %q", conf.Logs.Encoder)
	}

	switch conf.Storage.Backend {
	case StorageBackendFile:
		if conf.Storage.CampaignsFile == "" || conf.Storage.EnrollmentsFile == "" {
			return errors.New("storage files must be set for the file backend")
		}
	case StorageBackendValkey:
		if conf.Storage.Valkey.URL == "" {
			return errors.New("storage.valkey.url must be set for the valkey backend")
		}
	default:
		return fmt.Errorf("unexpected storage backend %q", conf.Storage.Backend)
	}

	switch conf.Agents.Registry {
	case AgentRegistryHTTP, AgentRegistryKubernetes:
	default:
		return fmt.Errorf("unexpected agent registry %q", conf.Agents.Registry)
	}

	if conf.Webhooks.RetryAttempts == 0 {
		return errors.New("webhooks.retryAttempts must be at least 1")
	}

	if conf.Webhooks.Timeout <= 0 {
		return errors.New("webhooks.timeout must be positive")
	}

	for _, sub := range conf.Webhooks.Subscriptions {
		if sub.Timeout < 0 || sub.RetryDelay < 0 {
			return fmt.Errorf("webhook %s: timeout and retryDelay must not be negative", sub.URL)
		}
	}

	if conf.Webhooks.BufferSize <= 0 || conf.Webhooks.MaxConcurrency <= 0 {
		return errors.New("webhooks.bufferSize and webhooks.maxConcurrency must be positive")
	}

	if conf.Ingest.Enabled && (conf.Ingest.Kafka.Broker.URLs == "" || conf.Ingest.Kafka.Consumer.Topic == "") {
		return errors.New("ingest.kafka broker urls and consumer topic must be set when ingest is enabled")
	}

	return nil
}
