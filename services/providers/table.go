package providers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is one row of the provider table. Vendors differ only by
// endpoint, headers and model list, so they are data rather than types.
type Definition struct {
	Key      string            `yaml:"key"`
	Name     string            `yaml:"name"`
	BaseURL  string            `yaml:"base_url"`
	Models   []string          `yaml:"models"`
	Priority int               `yaml:"priority"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// Table is the on-disk layout of PROVIDERS_FILE
type Table struct {
	Providers []Definition `yaml:"providers"`
}

// DefaultDefinitions returns the built-in provider table
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Key:     "openrouter",
			Name:    "OpenRouter",
			BaseURL: "https://openrouter.ai/api/v1",
			Models: []string{
				"google/gemini-2.0-flash-thinking-exp:free",
				"qwen/qwen-2.5-coder-32b-instruct",
				"google/gemini-flash-1.5",
				"meta-llama/llama-3.1-405b-instruct:free",
			},
			Priority: 1,
			Headers: map[string]string{
				"HTTP-Referer": "https://bolt.diy",
				"X-Title":      "Bolt.diy",
			},
		},
		{
			Key:      "longcat",
			Name:     "LongCat",
			BaseURL:  "https://api.longcat.ai/v1",
			Models:   []string{"gpt-4o-mini", "gpt-4o", "claude-3-5-sonnet"},
			Priority: 2,
		},
		{
			Key:      "deepseek",
			Name:     "DeepSeek",
			BaseURL:  "https://api.deepseek.com/v1",
			Models:   []string{"deepseek-chat", "deepseek-coder"},
			Priority: 3,
		},
	}
}

// LoadTable reads and validates a YAML provider table
func LoadTable(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML provider table
func ParseTable(data []byte) ([]Definition, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse provider table: %w", err)
	}
	if len(table.Providers) == 0 {
		return nil, errors.New("provider table is empty")
	}

	seen := make(map[string]bool, len(table.Providers))
	for i := range table.Providers {
		def := &table.Providers[i]
		def.Key = strings.ToLower(strings.TrimSpace(def.Key))
		if def.Key == "" {
			return nil, fmt.Errorf("provider %d: key is required", i)
		}
		if seen[def.Key] {
			return nil, fmt.Errorf("provider %s: duplicate key", def.Key)
		}
		seen[def.Key] = true
		if def.Name == "" {
			return nil, fmt.Errorf("provider %s: name is required", def.Key)
		}
		if def.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base_url is required", def.Key)
		}
		def.BaseURL = strings.TrimRight(def.BaseURL, "/")
	}
	return table.Providers, nil
}

// BuildStates turns definitions into fresh provider states. Credentials and
// base URL overrides are looked up by provider key.
func BuildStates(defs []Definition, apiKeys, baseURLs map[string]string) []ProviderState {
	states := make([]ProviderState, 0, len(defs))
	for _, def := range defs {
		state := ProviderState{
			Key:       def.Key,
			Name:      def.Name,
			APIKey:    apiKeys[def.Key],
			BaseURL:   def.BaseURL,
			Models:    append([]string(nil), def.Models...),
			Priority:  def.Priority,
			Headers:   copyHeaders(def.Headers),
			Available: true,
		}
		if override := baseURLs[def.Key]; override != "" {
			state.BaseURL = override
		}
		states = append(states, state)
	}
	return states
}

func copyHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
