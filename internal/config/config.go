// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/aulanotes/AulaNotes/internal/utils"
)

// api keys in config.json are encrypted at rest when CONFIG_SECRET is set
const encryptedValuePrefix = "enc:"

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig holds the full application configuration
type AppConfig struct {
	Port         string `json:"port"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	DataDir      string `json:"data_dir"`
	LogDir       string `json:"log_dir"`
	DebugMode    bool   `json:"debug_mode"`

	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config holds the base settings read from the environment
type Config struct {
	Port         string
	OpenAIAPIKey string
	DataDir      string
	LogDir       string
	DebugMode    bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env loading is optional
	godotenv.Load()

	config := &Config{
		Port:         getEnv("PORT", "8080"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	if config.OpenAIAPIKey == "" {
		log.Println("warning: no OpenAI API key set, the LLM provider must be configured via the API before structuring works")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath resolves a directory from the environment and creates it
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig initializes the configuration manager. Saved settings from
// config.json under dataDir take precedence over environment defaults for
// the LLM section.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:         baseConfig.Port,
		OpenAIAPIKey: baseConfig.OpenAIAPIKey,
		DataDir:      baseConfig.DataDir,
		LogDir:       baseConfig.LogDir,
		DebugMode:    baseConfig.DebugMode,
		LLMProvider:  "openai",
		LLMConfig: map[string]string{
			"api_key":       baseConfig.OpenAIAPIKey,
			"default_model": "gpt-4o-mini",
		},
	}

	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// keep the file's LLM settings, refresh the base settings
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				decryptStoredSecrets(savedConfig.LLMConfig)

				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.OpenAIAPIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

// GetCurrentConfig returns a copy of the current configuration
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:         baseConfig.Port,
			OpenAIAPIKey: baseConfig.OpenAIAPIKey,
			DataDir:      baseConfig.DataDir,
			LogDir:       baseConfig.LogDir,
			DebugMode:    baseConfig.DebugMode,
			LLMProvider:  "openai",
			LLMConfig: map[string]string{
				"api_key": baseConfig.OpenAIAPIKey,
			},
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig swaps the persisted LLM provider settings
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return SaveConfig()
}

// SaveConfig writes the current configuration to disk
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("no configuration to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	toSave := *currentConfig
	toSave.LLMConfig = encryptSecretsForStorage(currentConfig.LLMConfig)

	data, err := json.MarshalIndent(&toSave, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}

// encryptSecretsForStorage returns a copy of the LLM config with the api key
// encrypted when CONFIG_SECRET is set. The in-memory config stays plaintext.
func encryptSecretsForStorage(llmConfig map[string]string) map[string]string {
	secret := os.Getenv("CONFIG_SECRET")
	if secret == "" || llmConfig == nil {
		return llmConfig
	}

	copied := make(map[string]string, len(llmConfig))
	for k, v := range llmConfig {
		copied[k] = v
	}

	if apiKey := copied["api_key"]; apiKey != "" && !strings.HasPrefix(apiKey, encryptedValuePrefix) {
		if encrypted, err := utils.Encrypt(apiKey, secret); err == nil {
			copied["api_key"] = encryptedValuePrefix + encrypted
		}
	}

	return copied
}

// decryptStoredSecrets decrypts enc:-prefixed values in place. A value that
// cannot be decrypted is dropped rather than passed on as garbage.
func decryptStoredSecrets(llmConfig map[string]string) {
	if llmConfig == nil {
		return
	}

	secret := os.Getenv("CONFIG_SECRET")
	for k, v := range llmConfig {
		if !strings.HasPrefix(v, encryptedValuePrefix) {
			continue
		}
		if secret == "" {
			llmConfig[k] = ""
			continue
		}
		decrypted, err := utils.Decrypt(strings.TrimPrefix(v, encryptedValuePrefix), secret)
		if err != nil {
			llmConfig[k] = ""
			continue
		}
		llmConfig[k] = decrypted
	}
}
