package netisolation

// NetworkSpec describes a network to create.
type NetworkSpec struct {
	Name   string
	Driver string
	// Internal networks have no route to the host's external network.
	Internal bool
	// EnableICC allows containers on the bridge to talk to each other.
	EnableICC bool
	Labels    map[string]string
}

// Network is a runtime network as listed by the runtime.
type Network struct {
	ID     string
	Name   string
	Labels map[string]string
}

// RemoveReport summarizes a bulk removal.
type RemoveReport struct {
	Removed int
	Missing int
	Failed  int
}
