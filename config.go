package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds application configuration from ~/.rulemcp/config.json
type Config struct {
	Gemini GeminiConfig `json:"gemini,omitempty"`
	Store  StoreConfig  `json:"store,omitempty"`
	// MaxSteps bounds the deliberate/execute cycles of one repair session.
	MaxSteps int `json:"max_steps,omitempty"`
}

// GeminiConfig holds Gemini model settings.
type GeminiConfig struct {
	APIKey         string `json:"api_key,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// StoreConfig holds storage paths.
type StoreConfig struct {
	RulePath   string `json:"rule_path,omitempty"`   // badger directory
	MemoryPath string `json:"memory_path,omitempty"` // chromem export file
}

// LoadConfig reads configuration from ~/.rulemcp/config.json, applies
// environment overrides and fills defaults.
func LoadConfig(logger *log.Logger) (*Config, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	cfg := &Config{}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".rulemcp", "config.json")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.json: %w", err)
		}
		logger.Printf("Loaded config from %s", configPath)
	case os.IsNotExist(err):
		logger.Printf("Config file not found at %s, using defaults and environment variables", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables if present
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	if model := os.Getenv("RULEMCP_LLM_MODEL"); model != "" {
		cfg.Gemini.LLMModel = model
	}
	if model := os.Getenv("RULEMCP_EMBEDDING_MODEL"); model != "" {
		cfg.Gemini.EmbeddingModel = model
	}
	if path := os.Getenv("RULEMCP_DB_PATH"); path != "" {
		cfg.Store.RulePath = path
	}
	if path := os.Getenv("RULEMCP_MEMORY_PATH"); path != "" {
		cfg.Store.MemoryPath = path
	}
	if steps := os.Getenv("RULEMCP_MAX_STEPS"); steps != "" {
		if n, err := strconv.Atoi(steps); err == nil && n > 0 {
			cfg.MaxSteps = n
		}
	}

	// Set defaults
	if cfg.Gemini.LLMModel == "" {
		cfg.Gemini.LLMModel = DefaultLLMModel
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Store.RulePath == "" {
		cfg.Store.RulePath = DefaultStorePath
	}
	if cfg.Store.MemoryPath == "" {
		cfg.Store.MemoryPath = DefaultMemoryPath
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	return cfg, nil
}

// SaveConfig writes configuration to ~/.rulemcp/config.json
func SaveConfig(cfg *Config, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".rulemcp")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create .rulemcp directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config.json: %w", err)
	}

	logger.Printf("Saved config to %s", configPath)
	return nil
}
