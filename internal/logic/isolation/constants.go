package isolation

const (
	CapAll = "ALL"

	DefaultPidsLimit = 100

	NetworkModeNone = "none"
	ModePrivate     = "private"

	tmpPath    = "/tmp"
	tmpOptions = "rw,noexec,nosuid,size=64m"

	cpuShareUnit = 1024
)
