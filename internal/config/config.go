package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ShareDir       string `json:"share_dir" yaml:"share_dir"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	PreviewWidth   int    `json:"preview_width" yaml:"preview_width"`
	CatalogWorkers int    `json:"catalog_workers" yaml:"catalog_workers"`
	LLM            struct {
		Provider         string `json:"provider" yaml:"provider"`
		BaseURL          string `json:"base_url" yaml:"base_url"`
		APIKey           string `json:"api_key" yaml:"api_key"`
		Model            string `json:"model" yaml:"model"`
		MaxContextTokens int    `json:"max_context_tokens" yaml:"max_context_tokens"`
	} `json:"llm" yaml:"llm"`
}

// DefaultShareDir is where metadata, sessions and logs live unless configured.
func DefaultShareDir() string {
	return filepath.Join(os.Getenv("HOME"), ".gopherlog")
}

// DefaultPath is the config file used when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultShareDir(), "config.json")
}

// MetadataPath is the registry document of working directories.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.ShareDir, "gopherlog.json")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.ShareDir, "logs", "gopherlog.log")
}

func defaults() *Config {
	cfg := &Config{
		ShareDir:       DefaultShareDir(),
		LogLevel:       "info",
		PreviewWidth:   50,
		CatalogWorkers: 4,
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.MaxContextTokens = 128000
	return cfg
}

// Load reads the config at path over the defaults. A missing file is created
// with the defaults. Files ending in .yaml or .yml are read as YAML, anything
// else as JSON.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if shareDir := os.Getenv("GOPHERLOG_SHARE_DIR"); shareDir != "" {
		cfg.ShareDir = shareDir
	}
	if level := os.Getenv("GOPHERLOG_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}

	return cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	return writeAtomic(path, cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func encode(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := encode(path, v)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into the generic nested map form used by the
// get/set/list helpers.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every config value under its dot-separated key,
// optionally masking secrets.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	for name, v := range flat {
		if k, ok := LookupKey(name); ok {
			flat[name] = k.normalize(v)
		}
	}
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any)
	if err := decode(path, data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return raw, nil
}

// GetValue returns the value of key as stored in the config file, or the
// default when the file predates the key.
func GetValue(path, key string) (any, error) {
	k, ok := LookupKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if v, ok := Flatten(raw)[key]; ok {
		return k.normalize(v), nil
	}
	values, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	return values[key], nil
}

// SetValue parses value for key and stores it in an existing config file.
// Unknown keys and values of the wrong type or range are rejected.
func SetValue(path, key, value string) error {
	k, ok := LookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	v, err := k.Parse(value)
	if err != nil {
		return err
	}
	raw, err := readRaw(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	flat := Flatten(raw)
	flat[key] = v
	doc, err := Unflatten(flat)
	if err != nil {
		return err
	}
	return writeAtomic(path, doc)
}
