package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderSpec declares one provider endpoint in the manifest. API keys
// are referenced by env var name, never stored in the file.
type ProviderSpec struct {
	ID        string `yaml:"id"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Duration decodes "30s"-style YAML scalars.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// TaskSpec binds one task kind to an ordered provider chain. Order is
// priority order: best quality / cheapest first.
type TaskSpec struct {
	Providers []string `yaml:"providers"`
	Prompt    string   `yaml:"prompt"`
	Timeout   Duration `yaml:"timeout"`
}

type ProvidersManifest struct {
	Providers []ProviderSpec      `yaml:"providers"`
	Tasks     map[string]TaskSpec `yaml:"tasks"`
}

func LoadProvidersManifest(path string) (*ProvidersManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers manifest: %w", err)
	}

	var manifest ProvidersManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse providers manifest: %w", err)
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (m *ProvidersManifest) validate() error {
	if len(m.Providers) == 0 {
		return fmt.Errorf("providers manifest: no providers declared")
	}
	known := make(map[string]bool, len(m.Providers))
	for _, p := range m.Providers {
		if p.ID == "" || p.BaseURL == "" {
			return fmt.Errorf("providers manifest: provider needs id and base_url")
		}
		if known[p.ID] {
			return fmt.Errorf("providers manifest: duplicate provider id %q", p.ID)
		}
		known[p.ID] = true
	}
	for kind, task := range m.Tasks {
		if len(task.Providers) == 0 {
			return fmt.Errorf("providers manifest: task %q has empty chain", kind)
		}
		for _, id := range task.Providers {
			if !known[id] {
				return fmt.Errorf("providers manifest: task %q references unknown provider %q", kind, id)
			}
		}
	}
	return nil
}
