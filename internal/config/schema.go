package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file.
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the known configuration options. It drives
// validation, help output, and env var overrides.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Registering the same key twice
// in one section replaces the earlier definition.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Options returns a copy of every registered option, in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, len(s.options))
	for i, o := range s.options {
		out[i] = *o
	}
	return out
}

// Lookup returns the ConfigOption for a key in a given section ("" for
// global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys are known in
// every command section, since command options fall back to them.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section != "" && s.bySection[section][key] != nil {
		return true
	}
	return s.byKey[key] != nil
}

// Sections returns the sorted names of all sections with registered options.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

func (s *ConfigSchema) sectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Resolve returns the effective value of an option, checking the declared
// environment variable, then the config (command section first, then global),
// then the schema default.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	opt := s.Lookup(section, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		var (
			v  string
			ok bool
		)
		if section == "" {
			v, ok = c.GetGlobalOption(key)
		} else {
			v, ok = c.GetCommandOption(section, key)
		}
		if ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveInt is Resolve parsed as an int. Unparseable values fall back to the
// schema default.
func (s *ConfigSchema) ResolveInt(c *Config, section, key string) int {
	if i, err := strconv.Atoi(s.Resolve(c, section, key)); err == nil {
		return i
	}
	i, _ := strconv.Atoi(s.defaultValue(section, key))
	return i
}

// ResolveDuration is Resolve parsed as a time.Duration. Unparseable values
// fall back to the schema default.
func (s *ConfigSchema) ResolveDuration(c *Config, section, key string) time.Duration {
	if d, err := time.ParseDuration(s.Resolve(c, section, key)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(s.defaultValue(section, key))
	return d
}

// ResolveBool is Resolve parsed as a bool. Unparseable values are false.
func (s *ConfigSchema) ResolveBool(c *Config, section, key string) bool {
	b, _ := parseBool(s.Resolve(c, section, key))
	return b
}

func (s *ConfigSchema) defaultValue(section, key string) string {
	if opt := s.Lookup(section, key); opt != nil {
		return opt.Default
	}
	if opt := s.Lookup("", key); opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a
// sorted list of human-readable issues. It reports unknown options, type
// mismatches, and conditions mapped to an empty expression.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	for name, expression := range c.Conditions {
		if strings.TrimSpace(expression) == "" {
			issues = append(issues, fmt.Sprintf("condition %q: empty expression", name))
		}
	}

	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp returns a human-readable reference of all registered options,
// grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.sectionOptions(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.sectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	b.WriteString("\n[conditions]\n")
	writeOptionHelp(&b, ConfigOption{Key: "<name> = <expr>", Description: "Translate pushed values of a condition (env: value)"})
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the schema of every option btdsl understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "trees.dir", Type: TypeString, Default: "trees", Description: "Directory holding <action>.tree files", EnvVar: "BTDSL_TREES_DIR"},
		{Key: "snapshot.dir", Type: TypeString, Default: "", Description: "Directory snapshots are saved to by default"},
		{Key: "color", Type: TypeString, Default: "auto", Description: "Color mode: auto, always, never", EnvVar: "BTDSL_COLOR"},

		// control plane
		{Key: "server.addr", Type: TypeString, Default: "localhost:8080", Description: "Listen address of the control plane", EnvVar: "BTDSL_ADDR"},
		{Key: "action.endpoint", Type: TypeString, Default: "", Description: "Base URL action activations are POSTed to", EnvVar: "BTDSL_ACTION_ENDPOINT"},
		{Key: "action.timeout", Type: TypeDuration, Default: "5s", Description: "Timeout for forwarding an action activation"},

		// logging
		{Key: "log.file", Type: TypeString, Default: "", Description: "Log file path (rotated by size)", EnvVar: "BTDSL_LOG_FILE"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "BTDSL_LOG_LEVEL"},
		{Key: "log.format", Type: TypeString, Default: "text", Description: "Log format: text or json"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "repeat", Section: "tick", Type: TypeInt, Default: "1", Description: "Number of passes per tick command"},
		{Key: "format", Section: "tick", Type: TypeString, Default: "tree", Description: "Tick output format: tree or json"},
		{Key: "format", Section: "check", Type: TypeString, Default: "text", Description: "Check output format: text or json"},
		{Key: "read-timeout", Section: "serve", Type: TypeDuration, Default: "10s", Description: "HTTP read timeout"},
		{Key: "write-timeout", Section: "serve", Type: TypeDuration, Default: "10s", Description: "HTTP write timeout"},
	}
}
