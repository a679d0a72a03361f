package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExecutionMode toggles between automatic and manually-stepped event
// processing for a thread.
type ExecutionMode string

const (
	// ModeAuto drains the thread's queue and drives compaction automatically.
	ModeAuto ExecutionMode = "auto"
	// ModeStepping defers processing to explicit external step calls.
	ModeStepping ExecutionMode = "stepping"
)

// LLMConfig selects the model used by a thread's LLM-calling layer.
type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// BlueprintChunk declares an initial chunk in YAML-friendly form. Text is the
// only supported content shape at blueprint level.
type BlueprintChunk struct {
	Type      ChunkType         `yaml:"type" json:"type"`
	Subtype   string            `yaml:"subtype,omitempty" json:"subtype,omitempty"`
	Text      string            `yaml:"text" json:"text"`
	Retention RetentionStrategy `yaml:"retention,omitempty" json:"retention,omitempty"`
	Priority  int               `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Spec converts the declaration into a ChunkSpec.
func (b BlueprintChunk) Spec() ChunkSpec {
	retention := b.Retention
	if retention == "" {
		retention = RetentionCritical
	}
	return ChunkSpec{
		Type:      b.Type,
		Subtype:   b.Subtype,
		Content:   TextContent{Text: b.Text},
		Retention: retention,
		Priority:  b.Priority,
	}
}

// Blueprint describes how to instantiate a thread: its standing instructions,
// model configuration, available tools, compaction posture and any named
// subagent blueprints. Consumed only at thread-creation time.
type Blueprint struct {
	Name                 string                `yaml:"name" json:"name"`
	InitialChunks        []BlueprintChunk      `yaml:"initial_chunks,omitempty" json:"initial_chunks,omitempty"`
	LLM                  LLMConfig             `yaml:"llm" json:"llm"`
	Tools                []string              `yaml:"tools,omitempty" json:"tools,omitempty"`
	AutoCompactThreshold int                   `yaml:"auto_compact_threshold,omitempty" json:"auto_compact_threshold,omitempty"`
	ExecutionMode        ExecutionMode         `yaml:"execution_mode,omitempty" json:"execution_mode,omitempty"`
	Subagents            map[string]*Blueprint `yaml:"subagents,omitempty" json:"subagents,omitempty"`
}

// Validate checks the blueprint for structural problems.
func (b *Blueprint) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("blueprint: name is required")
	}
	if b.ExecutionMode != "" && b.ExecutionMode != ModeAuto && b.ExecutionMode != ModeStepping {
		return fmt.Errorf("blueprint %s: unknown execution mode %q", b.Name, b.ExecutionMode)
	}
	for name, sub := range b.Subagents {
		if sub == nil {
			return fmt.Errorf("blueprint %s: subagent %s is nil", b.Name, name)
		}
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("blueprint %s: subagent %s: %w", b.Name, name, err)
		}
	}
	return nil
}

// Mode returns the configured execution mode, defaulting to ModeAuto.
func (b *Blueprint) Mode() ExecutionMode {
	if b.ExecutionMode == "" {
		return ModeAuto
	}
	return b.ExecutionMode
}

// LoadBlueprint reads and validates a YAML blueprint file.
func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}
