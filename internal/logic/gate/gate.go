// Package gate decides whether an image may be replayed based on the
// severity counts reported by an external vulnerability scanner.
//
// The gate fails open: when the scanner cannot run, the result is all-zero
// with Skipped set and the decision is Proceed, unless Policy.FailClosed.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skillcoder/podreplay/internal/infra/metrics"
)

const defaultScanTimeout = 5 * time.Minute

type Gate struct {
	logger    *slog.Logger
	scanner   Scanner
	installer Installer
	policy    Policy
	now       func() time.Time

	installMu        sync.Mutex
	installAttempted bool
	installErr       error
}

// New creates a gate. installer may be nil, in which case a missing scanner
// is never installed.
func New(
	logger *slog.Logger,
	scanner Scanner,
	installer Installer,
	policy Policy,
) *Gate {
	if policy.ScanTimeout <= 0 {
		policy.ScanTimeout = defaultScanTimeout
	}

	return &Gate{
		logger:    logger,
		scanner:   scanner,
		installer: installer,
		policy:    policy,
		now:       time.Now,
	}
}

// Policy returns the policy the gate was built with.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Evaluate scans imageRef and renders a decision. It never fails: scanner
// problems degrade to a skipped result.
func (g *Gate) Evaluate(ctx context.Context, imageRef string) (*Result, Decision) {
	logger := g.logger.With("image", imageRef)
	start := g.now()

	if err := g.ensureScanner(ctx); err != nil {
		result := g.skipped(imageRef, start, err)
		logger.WarnContext(ctx, "vulnerability scan skipped", "reason", err)
		metrics.RecordScan(metrics.ScanSkipped)

		return result, Decide(result, g.policy)
	}

	scanCtx, cancel := context.WithTimeout(ctx, g.policy.ScanTimeout)
	defer cancel()

	report, err := g.scanner.Scan(scanCtx, imageRef)
	if err != nil {
		result := g.skipped(imageRef, start, fmt.Errorf("scan: %w", err))
		logger.WarnContext(ctx, "vulnerability scan skipped", "reason", err)
		metrics.RecordScan(metrics.ScanSkipped)

		return result, Decide(result, g.policy)
	}

	result := Count(report)
	result.Image = imageRef
	result.ScannedAt = start
	result.Duration = g.now().Sub(start)

	decision := Decide(result, g.policy)

	if result.Total() == 0 {
		logger.InfoContext(ctx, "vulnerability scan clean", "duration", result.Duration)
		metrics.RecordScan(metrics.ScanClean)
	} else {
		logger.InfoContext(ctx, "vulnerability scan completed",
			"critical", result.Critical,
			"high", result.High,
			"medium", result.Medium,
			"low", result.Low,
			"unknown", result.Unknown,
			"duration", result.Duration,
			"decision", decision,
		)
		metrics.RecordScan(metrics.ScanFindings)
	}

	return result, decision
}

// Decide applies policy to a scan result.
func Decide(result *Result, policy Policy) Decision {
	if result.Skipped {
		if policy.FailClosed {
			return Blocked
		}

		return Proceed
	}

	if result.Critical > 0 && !policy.AllowCriticalVulnerabilities {
		return NeedsConfirmation
	}

	return Proceed
}

// Count tallies findings by severity. Unrecognized severities count as unknown.
func Count(report *Report) *Result {
	result := &Result{}
	if report == nil {
		return result
	}

	result.Findings = report.Findings

	for _, f := range report.Findings {
		switch strings.ToUpper(strings.TrimSpace(f.Severity)) {
		case SeverityCritical:
			result.Critical++
		case SeverityHigh:
			result.High++
		case SeverityMedium:
			result.Medium++
		case SeverityLow:
			result.Low++
		default:
			result.Unknown++
		}
	}

	return result
}

// ensureScanner makes one install attempt per gate when the scanner binary
// is missing; later calls reuse the outcome.
func (g *Gate) ensureScanner(ctx context.Context) error {
	if g.installer == nil || g.installer.Available(ctx) {
		return nil
	}

	g.installMu.Lock()
	defer g.installMu.Unlock()

	if g.installAttempted {
		return g.installErr
	}

	g.installAttempted = true

	if !g.policy.AutoInstall {
		g.installErr = fmt.Errorf("%w: %w", ErrScannerUnavailable, ErrInstallSkipped)

		return g.installErr
	}

	g.logger.InfoContext(ctx, "vulnerability scanner not found, attempting install")

	if err := g.installer.Install(ctx); err != nil {
		g.installErr = fmt.Errorf("%w: install: %w", ErrScannerUnavailable, err)

		return g.installErr
	}

	if !g.installer.Available(ctx) {
		g.installErr = fmt.Errorf("%w: not found after install", ErrScannerUnavailable)

		return g.installErr
	}

	g.logger.InfoContext(ctx, "vulnerability scanner installed")

	return nil
}

func (g *Gate) skipped(imageRef string, start time.Time, reason error) *Result {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}

	return &Result{
		Image:      imageRef,
		ScannedAt:  start,
		Duration:   g.now().Sub(start),
		Skipped:    true,
		SkipReason: msg,
	}
}
