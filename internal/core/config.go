package core

import (
	"fmt"
	"os"
	"time"

	"github.com/jo-hoe/ransomware-detector/internal/backend/cache"
	"github.com/jo-hoe/ransomware-detector/internal/inference"
	"github.com/jo-hoe/ransomware-detector/internal/upload"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 8080
	DefaultSpace     = "nity/ransomware-detection-N"
	DefaultTimeout   = 60 * time.Second
	DefaultCacheTTL  = 24 * time.Hour
	tokenEnvVariable = "HF_TOKEN"
)

type Inference struct {
	// Space is a Hugging Face space id ("owner/name") or the URL of a Gradio server.
	Space                string        `yaml:"space"`
	Endpoint             string        `yaml:"endpoint"`
	HubURL               string        `yaml:"hubUrl"`
	Token                string        `yaml:"token"`
	Timeout              time.Duration `yaml:"timeout"`
	ClassificationFields []string      `yaml:"classificationFields"`
	LegitimateLabel      string        `yaml:"legitimateLabel"`
}

type Cache struct {
	Type             string        `yaml:"type"`
	ConnectionString string        `yaml:"connectionString"`
	TTL              time.Duration `yaml:"ttl"`
	Size             int           `yaml:"size"`
}

type ServiceConfig struct {
	Port      int           `yaml:"port"`
	Inference Inference     `yaml:"inference"`
	Upload    upload.Policy `yaml:"upload"`
	Cache     Cache         `yaml:"cache"`
}

// DefaultConfig returns the configuration used for omitted fields.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()
	if config.Inference.Token == "" {
		config.Inference.Token = os.Getenv(tokenEnvVariable)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func (config *ServiceConfig) applyDefaults() {
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	if config.Inference.Space == "" {
		config.Inference.Space = DefaultSpace
	}
	if config.Inference.Endpoint == "" {
		config.Inference.Endpoint = inference.DefaultEndpoint
	}
	if config.Inference.Timeout == 0 {
		config.Inference.Timeout = DefaultTimeout
	}
	if len(config.Inference.ClassificationFields) == 0 {
		config.Inference.ClassificationFields = inference.DefaultClassificationFields
	}
	if config.Inference.LegitimateLabel == "" {
		config.Inference.LegitimateLabel = inference.DefaultLegitimateLabel
	}

	defaults := upload.DefaultPolicy()
	if config.Upload.MaxFiles == 0 {
		config.Upload.MaxFiles = defaults.MaxFiles
	}
	if config.Upload.MaxSizeBytes == 0 {
		config.Upload.MaxSizeBytes = defaults.MaxSizeBytes
	}
	if len(config.Upload.Accept) == 0 {
		config.Upload.Accept = defaults.Accept
	}

	if config.Cache.Type == "" {
		config.Cache.Type = cache.TypeNone
	}
	if config.Cache.TTL == 0 {
		config.Cache.TTL = DefaultCacheTTL
	}
	if config.Cache.Size == 0 {
		config.Cache.Size = cache.DefaultMemorySize
	}
}

func (config *ServiceConfig) validate() error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is out of range", config.Port)
	}
	if config.Inference.Timeout < 0 {
		return fmt.Errorf("inference timeout must not be negative")
	}
	if err := config.Upload.Validate(); err != nil {
		return fmt.Errorf("invalid upload policy: %w", err)
	}
	switch config.Cache.Type {
	case cache.TypeNone, cache.TypeMemory, cache.TypeSQLite:
	case cache.TypeRedis:
		if config.Cache.ConnectionString == "" {
			return fmt.Errorf("redis cache requires a connectionString")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", config.Cache.Type)
	}
	if config.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}
