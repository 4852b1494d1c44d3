package config

import "time"

// Env key constants. All configuration env vars use the PODREPLAY_ prefix;
// duration values support explicit units (e.g. 5m, 40s, 2h). Env values
// override the YAML config file.

// Path to an optional YAML config file.
const envKeyConfigFile = "PODREPLAY_CONFIG_FILE"

// Path to kubeconfig file. If unset, KUBECONFIG is used as fallback.
const envKeyKubeConfig = "PODREPLAY_KUBECONFIG"

// Kubernetes API server URL. If unset, KUBERNETES_MASTER is used as fallback.
const envKeyKubeMaster = "PODREPLAY_KUBE_MASTER"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "PODREPLAY_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "PODREPLAY_LOG_FORMAT"

// Port for the replay API and health endpoints in serve mode.
const envKeyHTTPPort = "PODREPLAY_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "PODREPLAY_METRICS_PORT"

// Secret strategy: placeholder, prompt or insecure-mount.
const envKeySecretStrategy = "PODREPLAY_SECRET_STRATEGY"

// Must be true for insecure-mount to be accepted.
const envKeyInsecureSecretsAck = "PODREPLAY_INSECURE_SECRETS_ACK"

// Replay images with critical vulnerabilities without asking.
const envKeyAllowCritical = "PODREPLAY_ALLOW_CRITICAL_VULNERABILITIES"

// Block replays whose image could not be scanned.
const envKeyScanFailClosed = "PODREPLAY_SCAN_FAIL_CLOSED"

// Scanner executable name or path.
const envKeyScannerPath = "PODREPLAY_SCANNER_PATH"

// Install the scanner when it is missing.
const envKeyScannerAutoInstall = "PODREPLAY_SCANNER_AUTO_INSTALL"

// Directory the scanner is installed into on Linux.
const envKeyScannerInstallDir = "PODREPLAY_SCANNER_INSTALL_DIR"

// Per-image scan timeout. Units: s, m, h (e.g. 5m).
const (
	envKeyScanTimeout = "PODREPLAY_SCAN_TIMEOUT"
	envMinScanTimeout = time.Second
)

// Image pull timeout. Units: s, m, h (e.g. 10m).
const (
	envKeyPullTimeout = "PODREPLAY_PULL_TIMEOUT"
	envMinPullTimeout = time.Second
)

// Timeout of every other container runtime call. Units: s, m, h (e.g. 30s).
const (
	envKeyRuntimeTimeout = "PODREPLAY_RUNTIME_TIMEOUT"
	envMinRuntimeTimeout = time.Second
)

// Grace period before a stopped replay is killed. Units: s, m, h (e.g. 10s).
const (
	envKeyStopTimeout = "PODREPLAY_STOP_TIMEOUT"
	envMinStopTimeout = time.Second
)

// Run a full sweep before serve accepts requests.
const envKeySweepOnStart = "PODREPLAY_SWEEP_ON_START"

// Cron expression for the TTL sweeper in serve mode; empty disables it.
const envKeySweepSchedule = "PODREPLAY_SWEEP_SCHEDULE"

// Age after which the scheduled sweeper removes a replay. Units: s, m, h (e.g. 2h).
const (
	envKeyReplayTTL = "PODREPLAY_REPLAY_TTL"
	envMinReplayTTL = time.Minute
)

// Isolation policy.
const (
	envKeyNetworkIsolation = "PODREPLAY_NETWORK_ISOLATION"
	envKeyCPUs             = "PODREPLAY_CPUS"
	envKeyMemory           = "PODREPLAY_MEMORY"
	envKeyReadOnlyRootfs   = "PODREPLAY_READ_ONLY_ROOTFS"
	// Comma-separated capabilities dropped in addition to ALL.
	envKeyCapDrop         = "PODREPLAY_CAP_DROP"
	envKeyNoNewPrivileges = "PODREPLAY_NO_NEW_PRIVILEGES"
	envKeySeccompProfile  = "PODREPLAY_SECCOMP_PROFILE"
	envKeyAppArmorProfile = "PODREPLAY_APPARMOR_PROFILE"
	envKeyPidsLimit       = "PODREPLAY_PIDS_LIMIT"
)

// Standard k8s env keys used as fallback when PODREPLAY_* are unset.
const (
	envKeyKubeConfigFallback = "KUBECONFIG"
	envKeyKubeMasterFallback = "KUBERNETES_MASTER"
)
