package config

import (
	"fmt"
	"os"
	"strings"

	"modernc.org/libqbe"
)

type Feature int

const (
	FeatForwardCalls Feature = iota
	FeatDirectionalOps
	FeatDedupLiterals
	FeatStackConvention
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnAmbiguousOp
	WarnImmRange
	WarnPedantic
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features    map[Feature]Info
	Warnings    map[Warning]Info
	FeatureMap  map[string]Feature
	WarningMap  map[string]Warning
	ProfileName string
	QbeTarget   string
	WordSize    int
	WordType    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		WordSize:   8, WordType: "l",
	}

	features := map[Feature]Info{
		FeatForwardCalls:    {"forward-calls", false, "Reserve every function before lowering bodies so calls may precede the callee."},
		FeatDirectionalOps:  {"directional-ops", true, "Lower '>' to CMP_GT and '>>' to SHIFT_R instead of sharing CMP/SHIFT."},
		FeatDedupLiterals:   {"dedup-literals", true, "Share one literal slot between identical string literals."},
		FeatStackConvention: {"stack-convention", false, "Pass arguments and return values through PUSH/POP instead of rejecting them."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements following a return in the same block."},
		WarnAmbiguousOp:     {"ambiguous-op", true, "Warn when '<'/'>' or '<<'/'>>' collapse to the same opcode."},
		WarnImmRange:        {"imm-range", true, "Warn when a literal does not fit a 16-bit immediate field."},
		WarnPedantic:        {"pedantic", false, "Warn about expression statements whose value is discarded."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the word size for a QBE target. An empty qbeTarget
// picks libqbe's default for goos/goarch.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
	} else {
		c.QbeTarget = qbeTarget
	}

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		fmt.Fprintf(os.Stderr, "tosc: warning: unrecognized or unsupported QBE target '%s'.\n", c.QbeTarget)
		fmt.Fprintf(os.Stderr, "tosc: warning: defaulting to 64-bit properties. Compilation may fail.\n")
		c.WordSize, c.WordType = 8, "l"
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyProfile switches between the "reference" lowering, which collapses
// directional opcodes and keeps every literal separate, and the default
// "tosc" lowering.
func (c *Config) ApplyProfile(name string) error {
	c.ProfileName = name

	type profileSettings struct {
		feature   Feature
		refValue  bool
		toscValue bool
	}

	settings := []profileSettings{
		{FeatForwardCalls, false, true},
		{FeatDirectionalOps, false, true},
		{FeatDedupLiterals, false, true},
		{FeatStackConvention, false, true},
	}

	switch name {
	case "reference":
		for _, s := range settings {
			c.SetFeature(s.feature, s.refValue)
		}
		c.SetWarning(WarnAmbiguousOp, true)
	case "tosc":
		for _, s := range settings {
			c.SetFeature(s.feature, s.toscValue)
		}
	default:
		return fmt.Errorf("unsupported profile '%s'. Supported: 'reference', 'tosc'", name)
	}
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	// -pedantic turns on every warning; -Wno-pedantic only drops its own.
	if name == "pedantic" && isWarning {
		if !enable {
			c.SetWarning(WarnPedantic, false)
			return
		}
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, true)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -Wall/-Wno-all/-pedantic before every other flag so
// that specific flags always win.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" || name == "pedantic" {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" && name != "pedantic" {
			c.applyFlag("-" + name)
		}
	})
}

func (c *Config) ProcessDirectiveFlags(flagStr string) {
	for _, flag := range strings.Fields(flagStr) {
		c.applyFlag(flag)
	}
}
