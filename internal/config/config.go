// Package config handles FamilyConnect configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Server
	Server ServerConfig `json:"server"`

	// Reasoning backends
	OpenAI OpenAIConfig `json:"openai"`
	Legacy LegacyConfig `json:"legacy"`

	// Local agent runtimes and gateway
	Gateway GatewayConfig  `json:"gateway"`
	Agents  []AgentRuntime `json:"agents"`

	// Features
	Features FeatureConfig `json:"features"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// OpenAIConfig for the primary structured-reasoning backend
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// LegacyConfig for the legacy structured backend. A separate base URL lets
// constrained deployments point it at a local agent runtime without any
// credential configured.
type LegacyConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// GatewayConfig for the managed reasoning gateway
type GatewayConfig struct {
	URL string `json:"url"`
}

// AgentRuntime configures one locally-hosted agent process.
type AgentRuntime struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Port        int    `json:"port"`
	Entrypoint  string `json:"entrypoint"`
}

// FeatureConfig for feature flags
type FeatureConfig struct {
	EnableLocalAgents bool `json:"enable_local_agents"`
	DebugMode         bool `json:"debug_mode"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".familyconnect"),
		Server: ServerConfig{
			Port: 5000,
			Host: "localhost",
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o",
		},
		Legacy: LegacyConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
		},
		Gateway: GatewayConfig{
			URL: "http://localhost:3000",
		},
		Agents: []AgentRuntime{
			{AgentID: "grace", DisplayName: "Grace", Role: "elderly_companion", Port: 8001, Entrypoint: "grace_agent.py"},
			{AgentID: "alex", DisplayName: "Alex", Role: "family_coordinator", Port: 8002, Entrypoint: "alex_agent.py"},
		},
		Features: FeatureConfig{
			EnableLocalAgents: false,
			DebugMode:         false,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Override API keys from env if set
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
		if cfg.Legacy.APIKey == "" {
			cfg.Legacy.APIKey = apiKey
		}
	}
	if gw := os.Getenv("GENAI_GATEWAY_URL"); gw != "" {
		cfg.Gateway.URL = gw
	}

	return cfg, nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Don't save API keys to file
	safeCfg := *c
	safeCfg.OpenAI.APIKey = ""
	safeCfg.Legacy.APIKey = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
