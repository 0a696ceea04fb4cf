// Package rulepack loads user-supplied YAML overlays that extend the
// built-in detector vocabularies: extra sources, sanitizers, role checks,
// trusted callees, annotation markers, and dangerous property names. Packs
// declare a minimum tool version; an incompatible pack is rejected as a
// whole so a half-understood vocabulary never silently weakens a scan.
package rulepack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/lancet/internal/analysis/core"
	"github.com/xkilldash9x/lancet/internal/analysis/detect"
)

// ErrIncompatible marks a pack whose min_lancet_version exceeds the running
// tool version.
var ErrIncompatible = errors.New("rule pack requires a newer lancet version")

// Pack is one parsed rule-pack file.
type Pack struct {
	// Name identifies the pack in logs and error messages. Defaults to the
	// file path when absent.
	Name string `yaml:"name"`

	// MinLancetVersion gates the pack: it only applies when the running
	// tool is at least this version. Empty means no gate.
	MinLancetVersion string `yaml:"min_lancet_version"`

	// Rules maps detector names to the vocabulary entries appended to that
	// detector's catalogues.
	Rules map[string]RuleOverlay `yaml:"rules"`
}

// RuleOverlay is the per-detector extension block of a pack.
type RuleOverlay struct {
	Sources        []SourceEntry `yaml:"sources"`
	Sanitizers     []string      `yaml:"sanitizers"`
	RoleChecks     []string      `yaml:"role_checks"`
	TrustedCallees []string      `yaml:"trusted_callees"`
	Annotations    []string      `yaml:"annotations"`
	DangerousKeys  []string      `yaml:"dangerous_keys"`
}

// SourceEntry is one source-vocabulary pattern in a pack. Trust defaults to
// "high" when omitted.
type SourceEntry struct {
	Pattern string `yaml:"pattern"`
	Role    string `yaml:"role"`
	Trust   string `yaml:"trust"`
}

// Load reads, validates, and merges the packs at the given paths into
// per-detector overlays. A pack that fails to parse or fails the version
// gate aborts the load: rule packs shape what the scan reports, so a broken
// pack is a configuration error, not a warning.
func Load(fs afero.Fs, paths []string, toolVersion string, logger *zap.Logger) (map[string]detect.Overlay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	merged := make(map[string]detect.Overlay)
	for _, path := range paths {
		pack, err := readPack(fs, path)
		if err != nil {
			return nil, fmt.Errorf("loading rule pack %s: %w", path, err)
		}
		if err := pack.compatibleWith(toolVersion); err != nil {
			return nil, fmt.Errorf("rule pack %s: %w", path, err)
		}

		logger.Debug("Applying rule pack",
			zap.String("pack", pack.Name),
			zap.Int("rules", len(pack.Rules)),
		)
		for rule, overlay := range pack.Rules {
			merged[rule] = appendOverlay(merged[rule], overlay)
		}
	}
	return merged, nil
}

func readPack(fs afero.Fs, path string) (*Pack, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var pack Pack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if pack.Name == "" {
		pack.Name = path
	}
	for rule, overlay := range pack.Rules {
		for i, src := range overlay.Sources {
			if strings.TrimSpace(src.Pattern) == "" {
				return nil, fmt.Errorf("rule %q: source entry %d has an empty pattern", rule, i)
			}
			switch strings.ToLower(src.Trust) {
			case "", "high", "medium":
			default:
				return nil, fmt.Errorf("rule %q: source %q: trust must be 'high' or 'medium', got %q", rule, src.Pattern, src.Trust)
			}
		}
	}
	return &pack, nil
}

// compatibleWith checks the pack's version gate against the running tool.
// Development builds ("dev" or empty) accept every pack.
func (p *Pack) compatibleWith(toolVersion string) error {
	if p.MinLancetVersion == "" {
		return nil
	}
	required, err := version.NewVersion(p.MinLancetVersion)
	if err != nil {
		return fmt.Errorf("invalid min_lancet_version %q: %w", p.MinLancetVersion, err)
	}

	trimmed := strings.TrimPrefix(toolVersion, "v")
	if trimmed == "" || trimmed == "dev" {
		return nil
	}
	running, err := version.NewVersion(trimmed)
	if err != nil {
		// Unparseable build metadata: treat like a dev build.
		return nil
	}
	if running.LessThan(required) {
		return fmt.Errorf("%w: needs %s, running %s", ErrIncompatible, required, running)
	}
	return nil
}

func appendOverlay(dst detect.Overlay, src RuleOverlay) detect.Overlay {
	for _, s := range src.Sources {
		trust := core.TrustHigh
		if strings.EqualFold(s.Trust, "medium") {
			trust = core.TrustMedium
		}
		dst.Sources = append(dst.Sources, core.SourcePattern{
			Pattern: s.Pattern,
			Role:    s.Role,
			Trust:   trust,
		})
	}
	dst.Sanitizers = append(dst.Sanitizers, src.Sanitizers...)
	dst.RoleChecks = append(dst.RoleChecks, src.RoleChecks...)
	dst.TrustedCallees = append(dst.TrustedCallees, src.TrustedCallees...)
	dst.Annotations = append(dst.Annotations, src.Annotations...)
	dst.DangerousKeys = append(dst.DangerousKeys, src.DangerousKeys...)
	return dst
}
