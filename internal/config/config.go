package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Channels        []Channel                 `yaml:"channels"`
	Discovery       Discovery                 `yaml:"discovery"`
	Queue           Queue                     `yaml:"queue"`
	YouTube         YouTube                   `yaml:"youtube"`
	Summarization   Summarization             `yaml:"summarization"`
	PromptTemplates map[string]PromptTemplate `yaml:"prompt_templates"`
	Output          Output                    `yaml:"output"`
	Server          Server                    `yaml:"server"`
}

// Channel is a registered YouTube channel to watch.
type Channel struct {
	ChannelID string `yaml:"channel_id"`
	Name      string `yaml:"name"`
	Lang      string `yaml:"lang"`
}

type Discovery struct {
	DaysWindow         int `yaml:"days_window"`
	MinDurationMinutes int `yaml:"min_duration_minutes"`
}

type Queue struct {
	RetryCeiling      int `yaml:"retry_ceiling"`
	StaleAfterMinutes int `yaml:"stale_after_minutes"`
}

type YouTube struct {
	APIKeyEnv string   `yaml:"api_key_env"`
	Languages []string `yaml:"languages"`
}

type Summarization struct {
	Provider            string `yaml:"provider"`
	GeminiModel         string `yaml:"gemini_model"`
	GeminiAPIKeyEnv     string `yaml:"gemini_api_key_env"`
	OpenRouterModel     string `yaml:"openrouter_model"`
	OpenRouterAPIKeyEnv string `yaml:"openrouter_api_key_env"`
	PromptTemplate      string `yaml:"prompt_template"`
	MaxTokens           int    `yaml:"max_tokens"`
}

// PromptTemplate shapes the summarization prompt sent to a provider.
type PromptTemplate struct {
	SystemMessage      string   `yaml:"system_message"`
	ToneInstructions   []string `yaml:"tone_instructions"`
	OutputInstructions []string `yaml:"output_instructions"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for tubescribe.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tubescribe")
}

// DataDir returns the XDG data directory for tubescribe.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tubescribe")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tubescribe/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tubescribe init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Discovery: Discovery{
			DaysWindow:         7,
			MinDurationMinutes: 10,
		},
		Queue: Queue{
			RetryCeiling:      3,
			StaleAfterMinutes: 60,
		},
		YouTube: YouTube{
			APIKeyEnv: "YOUTUBE_API_KEY",
			Languages: []string{"ja", "en", "en-US", "en-GB"},
		},
		Summarization: Summarization{
			Provider:            "gemini",
			GeminiModel:         "gemini-2.5-flash",
			GeminiAPIKeyEnv:     "GOOGLE_AI_API_KEY",
			OpenRouterModel:     "google/gemini-2.0-flash-001",
			OpenRouterAPIKeyEnv: "OPENROUTER_API_KEY",
			PromptTemplate:      "blog_article",
			MaxTokens:           8192,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetPromptTemplate returns the named template, falling back to the
// built-in blog_article template when the config does not define it.
func (c *Config) GetPromptTemplate(name string) PromptTemplate {
	if tpl, ok := c.PromptTemplates[name]; ok {
		return tpl
	}
	return PromptTemplate{
		SystemMessage: "You are an experienced tech blog editor who turns video transcripts into readable articles.",
		ToneInstructions: []string{
			"Write in the speaker's voice, as a first-person blog article.",
			"Keep the original language of the transcript.",
			"Avoid marketing language and filler phrases.",
		},
		OutputInstructions: []string{
			"Output Markdown with a short title heading, section headings, and paragraphs.",
			"Do not invent facts that are not in the transcript or description.",
			"Do not include timestamps in the output.",
		},
	}
}

// LoadEnv loads a .env file from the working directory and the config
// directory if present. Missing files are not an error.
func LoadEnv() {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
