// Package trivy runs the Trivy CLI as the image vulnerability scanner and
// installs it on demand.
package trivy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/skillcoder/podreplay/internal/logic/gate"
)

const binaryName = "trivy"

type Scanner struct {
	logger *slog.Logger
	runner CommandRunner
	binary *Binary
}

var _ gate.Scanner = (*Scanner)(nil)

// NewScanner creates a scanner running binary through runner.
func NewScanner(logger *slog.Logger, runner CommandRunner, binary *Binary) *Scanner {
	return &Scanner{
		logger: logger,
		runner: runner,
		binary: binary,
	}
}

// Scan runs `trivy image --format json --quiet --scanners vuln <ref>` and
// flattens every finding of every result.
func (s *Scanner) Scan(ctx context.Context, imageRef string) (*gate.Report, error) {
	path, err := s.binary.Resolve()
	if err != nil {
		return nil, err
	}

	out, err := s.runner.Run(ctx, path, "image", "--format", "json", "--quiet", "--scanners", "vuln", imageRef)
	if err != nil {
		return nil, fmt.Errorf("scan image %s: %w", imageRef, err)
	}

	report, err := ParseReport(out)
	if err != nil {
		return nil, fmt.Errorf("scan image %s: %w", imageRef, err)
	}

	s.logger.DebugContext(ctx, "trivy scan finished", "image", imageRef, "findings", len(report.Findings))

	return report, nil
}

// ParseReport decodes trivy JSON output.
func ParseReport(data []byte) (*gate.Report, error) {
	var raw report

	if len(bytes.TrimSpace(data)) == 0 {
		return &gate.Report{}, nil
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode trivy report: %w", err)
	}

	out := &gate.Report{}

	for _, res := range raw.Results {
		for _, v := range res.Vulnerabilities {
			out.Findings = append(out.Findings, gate.Finding{
				ID:               v.VulnerabilityID,
				Package:          v.PkgName,
				InstalledVersion: v.InstalledVersion,
				FixedVersion:     v.FixedVersion,
				Severity:         v.Severity,
				Title:            v.Title,
			})
		}
	}

	return out, nil
}
