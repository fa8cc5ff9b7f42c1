package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FeckMell/clientproxier/domain"

	"gopkg.in/yaml.v3"
)

// Env variable names. A small, deliberate subset of the configuration lives in the environment
// rather than the checked-in YAML file: the path to that file itself, and the external
// addresses/credentials that differ per deployment and shouldn't be committed.
const (
	envConfigPath     = "CONFIG_PATH"
	envRuntimeEnvAddr = "RUNTIME_ENV_AGENT_ADDRESS"
	envKVRedisAddr    = "KV_REDIS_ADDR"
	envKVRedisUser    = "KV_REDIS_USERNAME"
	envKVRedisPass    = "KV_REDIS_PASSWORD"
)

const defaultConfigPath = "/etc/clientproxier/config.yaml"

// yamlConfig is the root struct for YAML unmarshalling, one struct per section with yaml tags,
// normalized into domain.Config by LoadConfig.
type yamlConfig struct {
	Listen struct {
		Control string `yaml:"control"`
		Data    string `yaml:"data"`
		Log     string `yaml:"log"`
	} `yaml:"listen"`

	Ports struct {
		Low  int `yaml:"low"`
		High int `yaml:"high"`
	} `yaml:"ports"`

	ClusterAddress string `yaml:"cluster_address"`

	ThreadPoolSize int `yaml:"thread_pool_size"`

	Timeouts struct {
		ChannelSeconds        int `yaml:"channel_seconds"`
		ReapSeconds           int `yaml:"reap_seconds"`
		LogStreamRetries      int `yaml:"log_stream_retries"`
		LogStreamRetrySeconds int `yaml:"log_stream_retry_seconds"`
	} `yaml:"timeouts"`

	Backend struct {
		LogDir   string   `yaml:"log_dir"`
		Command  []string `yaml:"command"`
		ReadyTag string   `yaml:"ready_tag"`
	} `yaml:"backend"`

	MetricsListen string `yaml:"metrics_listen"`
}

// loadYAMLConfig reads the YAML file at path and unmarshals it into yamlConfig.
//
// Returns: (*yamlConfig, nil) on successful read and unmarshal; (nil, error) on os.ReadFile or
// yaml.Unmarshal error.
//
// Called only from LoadConfig.
func loadYAMLConfig(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out yamlConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// resolvedConfig bundles domain.Config (the session manager / proxy wiring) with the metrics
// listen address, which domain.Config has no need to carry past startup.
type resolvedConfig struct {
	domain.Config
	MetricsListenAddr string
}

// LoadConfig builds the proxier configuration from CONFIG_PATH's YAML file (defaulting to
// /etc/clientproxier/config.yaml) layered with environment variable overrides for the runtime-env
// agent address and the KV store credentials, failing fast on anything required and missing.
//
// Returns: (*resolvedConfig, nil) on success; (nil, error) on a missing/unreadable/malformed YAML
// file or a missing required value.
//
// Called only from main at startup.
func LoadConfig() (*resolvedConfig, error) {
	configPath := strings.TrimSpace(os.Getenv(envConfigPath))
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if !filepath.IsAbs(configPath) {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		configPath = abs
	}
	raw, err := loadYAMLConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	cfg := domain.Config{
		ControlListenAddr: strings.TrimSpace(raw.Listen.Control),
		DataListenAddr:    strings.TrimSpace(raw.Listen.Data),
		LogListenAddr:     strings.TrimSpace(raw.Listen.Log),
		PortLow:           raw.Ports.Low,
		PortHigh:          raw.Ports.High,
		ClusterAddress:    strings.TrimSpace(raw.ClusterAddress),
		ThreadPoolSize:    raw.ThreadPoolSize,
		BackendLogDir:     strings.TrimSpace(raw.Backend.LogDir),
		BackendCommand:    raw.Backend.Command,
		BackendReadyTag:   strings.TrimSpace(raw.Backend.ReadyTag),
	}

	if cfg.PortLow == 0 && cfg.PortHigh == 0 {
		cfg.PortLow, cfg.PortHigh = 23000, 24000
	}
	if cfg.ThreadPoolSize == 0 {
		cfg.ThreadPoolSize = 64
	}
	cfg.ChannelTimeout = durationOrDefault(raw.Timeouts.ChannelSeconds, 30*time.Second)
	cfg.ReapInterval = durationOrDefault(raw.Timeouts.ReapSeconds, 30*time.Second)
	if raw.Timeouts.LogStreamRetries > 0 {
		cfg.LogStreamRetries = raw.Timeouts.LogStreamRetries
	} else {
		cfg.LogStreamRetries = 5
	}
	cfg.LogStreamRetryInterval = durationOrDefault(raw.Timeouts.LogStreamRetrySeconds, 2*time.Second)

	if cfg.ControlListenAddr == "" {
		return nil, fmt.Errorf("listen.control is required")
	}
	if cfg.DataListenAddr == "" {
		return nil, fmt.Errorf("listen.data is required")
	}
	if cfg.LogListenAddr == "" {
		return nil, fmt.Errorf("listen.log is required")
	}
	if cfg.PortLow >= cfg.PortHigh {
		return nil, fmt.Errorf("ports.low must be less than ports.high, got [%d, %d)", cfg.PortLow, cfg.PortHigh)
	}
	if cfg.BackendLogDir == "" {
		return nil, fmt.Errorf("backend.log_dir is required")
	}
	if len(cfg.BackendCommand) == 0 {
		return nil, fmt.Errorf("backend.command is required")
	}
	if cfg.BackendReadyTag == "" {
		return nil, fmt.Errorf("backend.ready_tag is required")
	}

	cfg.RuntimeEnvAgentAddress = strings.TrimSpace(os.Getenv(envRuntimeEnvAddr))
	if cfg.RuntimeEnvAgentAddress == "" {
		return nil, fmt.Errorf("%s is required", envRuntimeEnvAddr)
	}

	cfg.KVRedisAddr = strings.TrimSpace(os.Getenv(envKVRedisAddr))
	cfg.KVRedisUsername = strings.TrimSpace(os.Getenv(envKVRedisUser))
	cfg.KVRedisPassword = os.Getenv(envKVRedisPass)
	if cfg.KVRedisAddr == "" {
		return nil, fmt.Errorf("%s is required (backs the pre-session fallback operations)", envKVRedisAddr)
	}

	metricsListen := strings.TrimSpace(raw.MetricsListen)
	if metricsListen == "" {
		metricsListen = ":9090"
	}

	return &resolvedConfig{Config: cfg, MetricsListenAddr: metricsListen}, nil
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
