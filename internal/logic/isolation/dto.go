package isolation

// Config is the declarative isolation policy for one replay.
type Config struct {
	NetworkIsolation bool     `yaml:"networkIsolation"`
	CPUs             float64  `yaml:"cpus"`
	Memory           string   `yaml:"memory"`
	ReadOnlyRootfs   bool     `yaml:"readOnlyRootfs"`
	CapDrop          []string `yaml:"capDrop"`
	NoNewPrivileges  bool     `yaml:"noNewPrivileges"`
	SeccompProfile   string   `yaml:"seccompProfile"`
	AppArmorProfile  string   `yaml:"apparmorProfile"`
	PidsLimit        int64    `yaml:"pidsLimit"`

	// NetworkName is the isolated network the container joins. Set by the
	// orchestrator once the network exists.
	NetworkName string `yaml:"-"`
}

// DefaultConfig returns the hardened defaults user configuration overrides.
func DefaultConfig() Config {
	return Config{
		NetworkIsolation: true,
		CPUs:             1,
		Memory:           "512m",
		ReadOnlyRootfs:   true,
		CapDrop:          []string{CapAll},
		NoNewPrivileges:  true,
		PidsLimit:        DefaultPidsLimit,
	}
}

// ContainerRequest is a runtime-neutral container creation request.
type ContainerRequest struct {
	Name       string
	Image      string
	Entrypoint []string
	Cmd        []string
	Env        []string
	WorkingDir string
	Labels     map[string]string
	Host       HostConfig
}

// HostConfig carries the security-relevant host settings of a container.
type HostConfig struct {
	Privileged     bool
	CapAdd         []string
	CapDrop        []string
	SecurityOpt    []string
	PidsLimit      *int64
	Memory         int64
	CPUShares      int64
	ReadonlyRootfs bool
	Tmpfs          map[string]string
	NetworkMode    string
	IpcMode        string
	PidMode        string
}
