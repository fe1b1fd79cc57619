package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/clex/pkg/cli"
)

type Feature int

const (
	FeatLineComments Feature = iota
	FeatPreprocessor
	FeatBinaryLiterals
	FeatCEsc
	FeatCallCapture
	FeatColor
	FeatCaret
	FeatStrict
	FeatCount
)

type Warning int

const (
	WarnUnrecognizedEscape Warning = iota
	WarnMultiCharConst
	WarnEmptyCharConst
	WarnOverflow
	WarnNestedComment
	WarnOctal
	WarnExtra
	WarnPedantic
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		StdName:    "gnu",
	}

	features := map[Feature]Info{
		FeatLineComments:   {"line-comments", true, "Recognize C99 '//' line comments."},
		FeatPreprocessor:   {"preprocessor", true, "Treat a leading '#' as the start of a preprocessor directive."},
		FeatBinaryLiterals: {"binary-literals", true, "Recognize '0b' binary integer literals."},
		FeatCEsc:           {"c-esc", true, "Recognize '\\' escape sequences in string and character literals."},
		FeatCallCapture:    {"call-capture", true, "Capture the raw argument text of every function call."},
		FeatColor:          {"color", true, "Colorize diagnostics when writing to a terminal."},
		FeatCaret:          {"caret", false, "Print the offending source line and a caret under each diagnostic."},
		FeatStrict:         {"strict", false, "Exit with status 2 when the scan reported errors."},
	}

	warnings := map[Warning]Info{
		WarnUnrecognizedEscape: {"u-esc", true, "Warn on unrecognized character escape sequences."},
		WarnMultiCharConst:     {"multi-char-const", false, "Warn on multi-character character constants like 'xy'."},
		WarnEmptyCharConst:     {"empty-char-const", false, "Warn on the empty character constant ''."},
		WarnOverflow:           {"overflow", true, "Warn when an integer constant does not fit in 64 bits."},
		WarnNestedComment:      {"nested-comment", false, "Warn when '/*' appears inside a block comment."},
		WarnOctal:              {"octal", false, "Warn on legacy octal literals such as 0755."},
		WarnExtra:              {"extra", false, "Enable extra miscellaneous warnings."},
		WarnPedantic:           {"pedantic", false, "Issue all warnings demanded by the selected -std."},
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

// ApplyStd switches the features that differ between C dialects.
func (c *Config) ApplyStd(stdName string) error {
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		lineComments   bool
		binaryLiterals bool
	}

	presets := map[string]stdSettings{
		"c89": {false, false},
		"c99": {true, false},
		"c11": {true, false},
		"c23": {true, true},
		"gnu": {true, !isPedantic},
	}

	s, ok := presets[stdName]
	if !ok {
		return fmt.Errorf("unsupported standard '%s'. Supported: 'c89', 'c99', 'c11', 'c23', 'gnu'", stdName)
	}
	c.StdName = stdName
	c.SetFeature(FeatLineComments, s.lineComments)
	c.SetFeature(FeatBinaryLiterals, s.binaryLiterals)
	if isPedantic {
		c.SetWarning(WarnMultiCharConst, true)
		c.SetWarning(WarnEmptyCharConst, true)
		c.SetWarning(WarnOctal, stdName == "c89")
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

// ProcessFlags applies textual -W/-F flags. -Wall and -Wno-all go first so that
// individual flags can override them.
func (c *Config) ProcessFlags(flags []string) {
	for _, name := range flags {
		if n := strings.TrimPrefix(name, "-"); n == "Wall" || n == "Wno-all" {
			c.applyFlag(name)
		}
	}
	for _, name := range flags {
		if n := strings.TrimPrefix(name, "-"); n != "Wall" && n != "Wno-all" {
			c.applyFlag(name)
		}
	}
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name> on fs.
// The returned entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available feature flags:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed group entries into the config. Explicit
// flags win over the -std preset, so call it after ApplyStd.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
