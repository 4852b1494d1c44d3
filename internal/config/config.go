package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillcoder/podreplay/internal/logic/gate"
	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/sanitizer"
)

type Config struct {
	KubeConfig  string `yaml:"kubeconfig"`
	KubeMaster  string `yaml:"kubeMaster"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	HTTPPort    string `yaml:"httpPort"`
	MetricsPort string `yaml:"metricsPort"`

	SecretStrategy     string `yaml:"secretStrategy"`
	InsecureSecretsAck bool   `yaml:"insecureSecretsAck"`

	AllowCriticalVulnerabilities bool          `yaml:"allowCriticalVulnerabilities"`
	ScanFailClosed               bool          `yaml:"scanFailClosed"`
	ScannerPath                  string        `yaml:"scannerPath"`
	ScannerAutoInstall           bool          `yaml:"scannerAutoInstall"`
	ScannerInstallDir            string        `yaml:"scannerInstallDir"`
	ScanTimeout                  time.Duration `yaml:"scanTimeout"`

	PullTimeout    time.Duration `yaml:"pullTimeout"`
	RuntimeTimeout time.Duration `yaml:"runtimeTimeout"`
	StopTimeout    time.Duration `yaml:"stopTimeout"`

	SweepOnStart  bool          `yaml:"sweepOnStart"`
	SweepSchedule string        `yaml:"sweepSchedule"`
	ReplayTTL     time.Duration `yaml:"replayTTL"`

	Isolation isolation.Config `yaml:"isolation"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		HTTPPort:           "8080",
		MetricsPort:        "9090",
		SecretStrategy:     sanitizer.StrategyPlaceholder,
		ScannerPath:        "trivy",
		ScannerAutoInstall: true,
		ScanTimeout:        5 * time.Minute,
		PullTimeout:        10 * time.Minute,
		RuntimeTimeout:     30 * time.Second,
		StopTimeout:        10 * time.Second,
		SweepOnStart:       true,
		ReplayTTL:          2 * time.Hour,
		Isolation:          isolation.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by PODREPLAY_CONFIG_FILE and the environment, in that order.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(envKeyConfigFile))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) loadEnv() error {
	c.KubeConfig = getEnvOrFallback(envKeyKubeConfig, envKeyKubeConfigFallback, c.KubeConfig)
	c.KubeMaster = getEnvOrFallback(envKeyKubeMaster, envKeyKubeMasterFallback, c.KubeMaster)
	c.LogLevel = getEnvOrDefault(envKeyLogLevel, c.LogLevel)
	c.LogFormat = getEnvOrDefault(envKeyLogFormat, c.LogFormat)
	c.HTTPPort = getEnvOrDefault(envKeyHTTPPort, c.HTTPPort)
	c.MetricsPort = getEnvOrDefault(envKeyMetricsPort, c.MetricsPort)
	c.SecretStrategy = getEnvOrDefault(envKeySecretStrategy, c.SecretStrategy)
	c.ScannerPath = getEnvOrDefault(envKeyScannerPath, c.ScannerPath)
	c.ScannerInstallDir = getEnvOrDefault(envKeyScannerInstallDir, c.ScannerInstallDir)
	c.SweepSchedule = getEnvOrDefault(envKeySweepSchedule, c.SweepSchedule)
	c.Isolation.Memory = getEnvOrDefault(envKeyMemory, c.Isolation.Memory)
	c.Isolation.SeccompProfile = getEnvOrDefault(envKeySeccompProfile, c.Isolation.SeccompProfile)
	c.Isolation.AppArmorProfile = getEnvOrDefault(envKeyAppArmorProfile, c.Isolation.AppArmorProfile)

	if raw := os.Getenv(envKeyCapDrop); raw != "" {
		c.Isolation.CapDrop = splitList(raw)
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{envKeyInsecureSecretsAck, &c.InsecureSecretsAck},
		{envKeyAllowCritical, &c.AllowCriticalVulnerabilities},
		{envKeyScanFailClosed, &c.ScanFailClosed},
		{envKeyScannerAutoInstall, &c.ScannerAutoInstall},
		{envKeySweepOnStart, &c.SweepOnStart},
		{envKeyNetworkIsolation, &c.Isolation.NetworkIsolation},
		{envKeyReadOnlyRootfs, &c.Isolation.ReadOnlyRootfs},
		{envKeyNoNewPrivileges, &c.Isolation.NoNewPrivileges},
	}

	for _, b := range bools {
		if err := parseBoolEnv(b.key, b.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{envKeyScanTimeout, &c.ScanTimeout},
		{envKeyPullTimeout, &c.PullTimeout},
		{envKeyRuntimeTimeout, &c.RuntimeTimeout},
		{envKeyStopTimeout, &c.StopTimeout},
		{envKeyReplayTTL, &c.ReplayTTL},
	}

	for _, d := range durations {
		if err := parseDurationEnv(d.key, d.dst); err != nil {
			return err
		}
	}

	if raw := os.Getenv(envKeyCPUs); raw != "" {
		cpus, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envKeyCPUs, err)
		}

		c.Isolation.CPUs = cpus
	}

	if raw := os.Getenv(envKeyPidsLimit); raw != "" {
		pids, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envKeyPidsLimit, err)
		}

		c.Isolation.PidsLimit = pids
	}

	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.SecretStrategy {
	case sanitizer.StrategyPlaceholder, sanitizer.StrategyPrompt:
	case sanitizer.StrategyInsecureMount:
		if !c.InsecureSecretsAck {
			return fmt.Errorf("validate %s: %w (set %s=true)",
				envKeySecretStrategy, ErrInsecureNotAcknowledged, envKeyInsecureSecretsAck)
		}
	default:
		return fmt.Errorf("validate %s: %w: %q", envKeySecretStrategy, ErrUnknownSecretStrategy, c.SecretStrategy)
	}

	minimums := []struct {
		key   string
		value time.Duration
		min   time.Duration
	}{
		{envKeyScanTimeout, c.ScanTimeout, envMinScanTimeout},
		{envKeyPullTimeout, c.PullTimeout, envMinPullTimeout},
		{envKeyRuntimeTimeout, c.RuntimeTimeout, envMinRuntimeTimeout},
		{envKeyStopTimeout, c.StopTimeout, envMinStopTimeout},
		{envKeyReplayTTL, c.ReplayTTL, envMinReplayTTL},
	}

	for _, m := range minimums {
		if m.value < m.min {
			return fmt.Errorf("validate %s: %w: %s < %s", m.key, ErrDurationTooShort, m.value, m.min)
		}
	}

	if _, err := isolation.ParseMemory(c.Isolation.Memory); err != nil {
		return fmt.Errorf("validate %s: %w", envKeyMemory, err)
	}

	if _, err := isolation.CPUShares(c.Isolation.CPUs); err != nil {
		return fmt.Errorf("validate %s: %w", envKeyCPUs, err)
	}

	if c.Isolation.PidsLimit < 0 {
		return fmt.Errorf("validate %s: %w: %d", envKeyPidsLimit, ErrInvalidValue, c.Isolation.PidsLimit)
	}

	return nil
}

// GatePolicy is the security gate policy derived from the config.
func (c *Config) GatePolicy() gate.Policy {
	return gate.Policy{
		AllowCriticalVulnerabilities: c.AllowCriticalVulnerabilities,
		FailClosed:                   c.ScanFailClosed,
		AutoInstall:                  c.ScannerAutoInstall,
		ScanTimeout:                  c.ScanTimeout,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvOrFallback(key, fallbackKey, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return getEnvOrDefault(fallbackKey, defaultValue)
}

func parseBoolEnv(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}

	*dst = value

	return nil
}

func parseDurationEnv(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}

	*dst = value

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
