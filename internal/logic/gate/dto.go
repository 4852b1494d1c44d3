package gate

import "time"

// Decision is the outcome of the security gate.
type Decision string

const (
	Proceed           Decision = "proceed"
	Blocked           Decision = "blocked"
	NeedsConfirmation Decision = "needs-confirmation"
)

const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
	SeverityUnknown  = "UNKNOWN"
)

// Finding is one vulnerability reported by the scanner.
type Finding struct {
	ID               string
	Package          string
	InstalledVersion string
	FixedVersion     string
	Severity         string
	Title            string
}

// Report is the raw scanner output the gate counts.
type Report struct {
	Findings []Finding
}

// Result is the vulnerability scan result for one image. It is never nil:
// when the scan could not run, every count is zero and Skipped is set.
type Result struct {
	Image      string
	Critical   int
	High       int
	Medium     int
	Low        int
	Unknown    int
	Findings   []Finding
	ScannedAt  time.Time
	Duration   time.Duration
	Skipped    bool
	SkipReason string
}

// Total returns the number of findings across all severities.
func (r *Result) Total() int {
	return r.Critical + r.High + r.Medium + r.Low + r.Unknown
}

// Policy configures the decision rules.
type Policy struct {
	AllowCriticalVulnerabilities bool
	// FailClosed blocks replays whose scan was skipped.
	FailClosed  bool
	AutoInstall bool
	ScanTimeout time.Duration
}
