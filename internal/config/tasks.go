package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// AlertMode selects how the decision engine treats a task's results.
type AlertMode string

const (
	// AlertModeAutomatic alerts on every result without analysis.
	AlertModeAutomatic AlertMode = "automatic"
	// AlertModeAnomaly alerts only when the anomaly judgment flags the result.
	AlertModeAnomaly AlertMode = "anomaly"
)

const (
	DefaultTaskCadenceHours      = 24.0
	DefaultCuriosityCadenceHours = 1.0
	DefaultThresholdType         = "general"
	DefaultThresholdValue        = 0.05
)

// Threshold is advisory context for the anomaly judgment. Value is a
// fractional proportion (0.05 means 5%).
type Threshold struct {
	Type  string  `yaml:"type"`
	Value float64 `yaml:"value"`
}

// Task is a structured monitoring task fired on a fixed cadence.
type Task struct {
	Name             string
	Question         string
	CadenceHours     float64
	AlertMode        AlertMode
	AnomalyThreshold Threshold
}

// Curiosity configures the exploratory question stream.
type Curiosity struct {
	Enabled          bool
	CadenceHours     float64
	AlertMode        AlertMode
	AnomalyThreshold Threshold
}

// TasksConfig is the fully resolved monitoring configuration: structured
// tasks plus the curiosity block, with defaults applied and cadences
// validated. Immutable for the process lifetime.
type TasksConfig struct {
	StructuredTasks []Task
	Curiosity       Curiosity
}

// Wire types distinguish absent keys from explicit zero values so that a
// missing cadence gets the documented default while an explicit
// non-positive cadence is rejected.
type rawTasksFile struct {
	StructuredTasks []rawTask     `yaml:"structured_tasks"`
	Curiosity       *rawCuriosity `yaml:"curiosity"`
}

type rawTask struct {
	Name             string     `yaml:"name"`
	Question         string     `yaml:"question"`
	CadenceHours     *float64   `yaml:"cadence_hours"`
	AlertMode        string     `yaml:"alert_mode"`
	AnomalyThreshold *Threshold `yaml:"anomaly_threshold"`
}

type rawCuriosity struct {
	Enabled          *bool      `yaml:"enabled"`
	CadenceHours     *float64   `yaml:"cadence_hours"`
	AlertMode        string     `yaml:"alert_mode"`
	AnomalyThreshold *Threshold `yaml:"anomaly_threshold"`
}

// DefaultTasksConfig is the configuration used when no tasks file exists:
// no structured tasks, curiosity enabled on the default cadence.
func DefaultTasksConfig() *TasksConfig {
	return &TasksConfig{
		StructuredTasks: []Task{},
		Curiosity: Curiosity{
			Enabled:          true,
			CadenceHours:     DefaultCuriosityCadenceHours,
			AlertMode:        AlertModeAnomaly,
			AnomalyThreshold: defaultThreshold(),
		},
	}
}

// LoadTasks reads and validates the tasks file at path. A missing file is
// not an error: the returned bool is false and the safe default
// configuration is returned instead.
func LoadTasks(path string) (*TasksConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultTasksConfig(), false, nil
		}
		return nil, false, fmt.Errorf("failed to read tasks config: %w", err)
	}

	cfg, err := ParseTasks(data)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// ParseTasks parses and validates tasks configuration YAML.
func ParseTasks(data []byte) (*TasksConfig, error) {
	var raw rawTasksFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse tasks config: %w", err)
	}

	cfg := &TasksConfig{StructuredTasks: make([]Task, 0, len(raw.StructuredTasks))}

	for i, rt := range raw.StructuredTasks {
		task, err := rt.resolve()
		if err != nil {
			return nil, fmt.Errorf("structured task %d: %w", i, err)
		}
		cfg.StructuredTasks = append(cfg.StructuredTasks, task)
	}

	curiosity, err := raw.Curiosity.resolve()
	if err != nil {
		return nil, fmt.Errorf("curiosity config: %w", err)
	}
	cfg.Curiosity = curiosity

	return cfg, nil
}

func (rt rawTask) resolve() (Task, error) {
	if rt.Name == "" {
		return Task{}, errors.New("name is required")
	}
	if rt.Question == "" {
		return Task{}, errors.New("question is required")
	}
	cadence := DefaultTaskCadenceHours
	if rt.CadenceHours != nil {
		cadence = *rt.CadenceHours
	}
	if cadence <= 0 {
		return Task{}, fmt.Errorf("cadence_hours must be greater than 0, got %g", cadence)
	}
	mode, err := resolveAlertMode(rt.AlertMode)
	if err != nil {
		return Task{}, err
	}
	return Task{
		Name:             rt.Name,
		Question:         rt.Question,
		CadenceHours:     cadence,
		AlertMode:        mode,
		AnomalyThreshold: resolveThreshold(rt.AnomalyThreshold),
	}, nil
}

func (rc *rawCuriosity) resolve() (Curiosity, error) {
	// An absent curiosity block means curiosity-only defaults; a present
	// block enables the stream only when it says so explicitly.
	if rc == nil {
		return DefaultTasksConfig().Curiosity, nil
	}

	enabled := rc.Enabled != nil && *rc.Enabled
	cadence := DefaultCuriosityCadenceHours
	if rc.CadenceHours != nil {
		cadence = *rc.CadenceHours
	}
	if enabled && cadence <= 0 {
		return Curiosity{}, fmt.Errorf("cadence_hours must be greater than 0, got %g", cadence)
	}
	mode, err := resolveAlertMode(rc.AlertMode)
	if err != nil {
		return Curiosity{}, err
	}
	return Curiosity{
		Enabled:          enabled,
		CadenceHours:     cadence,
		AlertMode:        mode,
		AnomalyThreshold: resolveThreshold(rc.AnomalyThreshold),
	}, nil
}

func resolveAlertMode(s string) (AlertMode, error) {
	switch AlertMode(s) {
	case "":
		return AlertModeAnomaly, nil
	case AlertModeAutomatic:
		return AlertModeAutomatic, nil
	case AlertModeAnomaly:
		return AlertModeAnomaly, nil
	}
	return "", fmt.Errorf("alert_mode must be %q or %q, got %q", AlertModeAutomatic, AlertModeAnomaly, s)
}

func resolveThreshold(t *Threshold) Threshold {
	if t == nil {
		return defaultThreshold()
	}
	resolved := *t
	if resolved.Type == "" {
		resolved.Type = DefaultThresholdType
	}
	if resolved.Value == 0 {
		resolved.Value = DefaultThresholdValue
	}
	return resolved
}

func defaultThreshold() Threshold {
	return Threshold{Type: DefaultThresholdType, Value: DefaultThresholdValue}
}
