package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the layered configuration for env from configDir, decodes it into
// Config, applies environment overrides and fills defaults.
func Load(env string, configDir string) (*Config, error) {
	cfgMap, err := LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	OverrideDBFromEnv(&cfg.DB)
	OverrideMQFromEnv(&cfg.MQ)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideJWTFromEnv(&cfg.JWT)
	OverrideServerFromEnv(&cfg.Server)
	OverrideMarketFromEnv(&cfg.Market)
	OverrideProcessorFromEnv(&cfg.Processor)
	OverrideProviderFromEnv(&cfg.Provider)

	cfg.ApplyDefaults()
	return &cfg, nil
}

// MustLoad is Load driven by CONFIG_ENV / CONFIG_DIR; it exits on failure.
func MustLoad() *Config {
	cfg, err := Load(GetConfigEnv(), GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadConfig merges base.yaml, <env>.yaml and secrets.env into a generic map.
// configDir defaults to "config".
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	// base.yaml is mandatory
	baseConfig, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	// environment file is optional
	envConfig := make(map[string]interface{})
	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, fmt.Sprintf("%s.yaml", env))
		if _, err := os.Stat(envFile); err == nil {
			envConfig, err = loadYAMLFile(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
		}
	}

	merged := mergeMaps(baseConfig, envConfig)

	// secrets.env fills ${VAR} placeholders
	secretsFile := filepath.Join(configDir, "secrets.env")
	if _, err := os.Stat(secretsFile); err == nil {
		secrets, err := loadEnvFile(secretsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets.env: %w", err)
		}
		merged = substituteEnvVars(merged, secrets)
	}

	merged = overrideFromSystemEnv(merged)

	return merged, nil
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile parses KEY=VALUE lines, ignoring blanks and comments.
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			value = strings.Trim(value, `"`)
			value = strings.Trim(value, `'`)
			env[key] = value
		}
	}

	return env, nil
}

// mergeMaps returns dst overlaid with src; nested maps merge recursively.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range dst {
		result[k] = v
	}

	for k, v := range src {
		if dstMap, ok := result[k].(map[string]interface{}); ok {
			if srcMap, ok := v.(map[string]interface{}); ok {
				result[k] = mergeMaps(dstMap, srcMap)
			} else {
				result[k] = v
			}
		} else {
			result[k] = v
		}
	}

	return result
}

// substituteEnvVars replaces ${VAR_NAME} placeholders in every string value.
func substituteEnvVars(config map[string]interface{}, env map[string]string) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range config {
		switch val := v.(type) {
		case string:
			result[k] = substituteString(val, env)
		case map[string]interface{}:
			result[k] = substituteEnvVars(val, env)
		default:
			result[k] = v
		}
	}
	return result
}

func substituteString(s string, env map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	result := s
	for key, value := range env {
		placeholder := fmt.Sprintf("${%s}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// overrideFromSystemEnv resolves placeholders left unset by secrets.env from the
// process environment.
func overrideFromSystemEnv(config map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(config))
	for k, v := range config {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			if env := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); env != "" {
				result[k] = env
				continue
			}
		}
		if m, ok := v.(map[string]interface{}); ok {
			result[k] = overrideFromSystemEnv(m)
			continue
		}
		result[k] = v
	}
	return result
}

// GetEnv returns the variable or defaultValue when unset
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv returns CONFIG_ENV, defaulting to local
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}

