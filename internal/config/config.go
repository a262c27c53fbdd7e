// Package config provides YAML configuration loading and validation for
// both halves of bbtrace: the producer agent harness and the viewer.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// AgentConfig is the top-level configuration for cmd/bbtrace-agent: the
// small harness that drives drrun and reports on the producer's side of a
// channel. Ring capacities themselves are fixed by the wire format (see
// internal/wire) and are not configurable here.
type AgentConfig struct {
	// DrrunPath is the path to the DynamoRIO drrun launcher executable.
	// Required.
	DrrunPath string `yaml:"drrun_path"`

	// ClientDLLPath is the path to the instrumentation client DLL passed
	// to drrun via -c. Required.
	ClientDLLPath string `yaml:"client_dll_path"`

	// TargetExePath is the executable drrun runs under instrumentation.
	// Required.
	TargetExePath string `yaml:"target_exe_path"`

	// TargetArgs are passed through to TargetExePath after the `--`
	// separator.
	TargetArgs []string `yaml:"target_args"`

	// ChannelPrefix overrides session.DefaultChannelPrefix when non-empty.
	ChannelPrefix string `yaml:"channel_prefix"`

	// CommandPollInterval defaults to 10ms when zero. cmd/bbtrace-agent does
	// not pass it on: agentcore's command poller always polls every 10ms.
	CommandPollInterval time.Duration `yaml:"command_poll_interval"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// LoadAgentConfig reads the YAML file at path, unmarshals it into
// AgentConfig, applies defaults, and validates all required fields.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyAgentDefaults(&cfg)

	if err := validateAgentConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CommandPollInterval == 0 {
		cfg.CommandPollInterval = 10 * time.Millisecond
	}
}

func validateAgentConfig(cfg *AgentConfig) error {
	var errs []error

	if cfg.DrrunPath == "" {
		errs = append(errs, errors.New("drrun_path is required"))
	}
	if cfg.ClientDLLPath == "" {
		errs = append(errs, errors.New("client_dll_path is required"))
	}
	if cfg.TargetExePath == "" {
		errs = append(errs, errors.New("target_exe_path is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}

// ViewerConfig is the top-level configuration for cmd/bbtrace-viewer.
type ViewerConfig struct {
	// ChannelPrefix overrides session.DefaultChannelPrefix when non-empty.
	ChannelPrefix string `yaml:"channel_prefix"`

	// DrrunPath is the path to the DynamoRIO drrun launcher executable,
	// used to spawn the traced target. Required.
	DrrunPath string `yaml:"drrun_path"`

	// ClientDLLPath is the path to the instrumentation client DLL.
	// Required.
	ClientDLLPath string `yaml:"client_dll_path"`

	// TargetExePath is the executable to trace. Required.
	TargetExePath string `yaml:"target_exe_path"`

	// TargetArgs are passed through to TargetExePath after `--`.
	TargetArgs []string `yaml:"target_args"`

	// PDBReaderDLLPath is the filesystem path to the PDB-reading library
	// (a DIA SDK msdia*.dll or equivalent). Required.
	PDBReaderDLLPath string `yaml:"pdb_reader_dll_path"`

	// SymbolServer is an optional Microsoft-style symbol-server
	// specification of the form "srv*<cache>*<url>".
	SymbolServer string `yaml:"symbol_server,omitempty"`

	// ProjectionFileSuffix is a configurable predicate for the source-file
	// filter: only basic-block hits whose resolved file ends with this
	// suffix are projected onto the BlockLineMap. Empty means every
	// resolved file is projected.
	ProjectionFileSuffix string `yaml:"projection_file_suffix"`

	// AttachTimeout bounds how long the viewer waits for the agent's
	// shared segment to appear after launching drrun. Defaults to 30s
	// when zero.
	AttachTimeout time.Duration `yaml:"attach_timeout"`

	// HTTPAddr is the listen address for the viewer's debug/control HTTP
	// surface (internal/viewerapi). Defaults to "127.0.0.1:9100" when
	// omitted.
	HTTPAddr string `yaml:"http_addr"`

	// AuditLogPath is where the control-plane audit log is appended.
	// Defaults to "bbtrace-audit.jsonl" when omitted.
	AuditLogPath string `yaml:"audit_log_path"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// LoadViewerConfig reads the YAML file at path, unmarshals it into
// ViewerConfig, applies defaults, and validates all required fields.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg ViewerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyViewerDefaults(&cfg)

	if err := validateViewerConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

func applyViewerDefaults(cfg *ViewerConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AttachTimeout == 0 {
		cfg.AttachTimeout = 30 * time.Second
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "127.0.0.1:9100"
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "bbtrace-audit.jsonl"
	}
}

func validateViewerConfig(cfg *ViewerConfig) error {
	var errs []error

	if cfg.DrrunPath == "" {
		errs = append(errs, errors.New("drrun_path is required"))
	}
	if cfg.ClientDLLPath == "" {
		errs = append(errs, errors.New("client_dll_path is required"))
	}
	if cfg.TargetExePath == "" {
		errs = append(errs, errors.New("target_exe_path is required"))
	}
	if cfg.PDBReaderDLLPath == "" {
		errs = append(errs, errors.New("pdb_reader_dll_path is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
