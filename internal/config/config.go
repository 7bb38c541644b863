package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dooshek/ttsclient/internal/fileops"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "ttsclient.yaml"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// LoadConfig reads ~/.config/ttsclient/ttsclient.yaml and applies environment
// overrides. A missing file is not an error.
func LoadConfig() (*types.Config, error) {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return Load(fileOps)
}

// Load reads the config file from fileOps and applies environment overrides
func Load(fileOps fileops.FileOps) (*types.Config, error) {
	config, err := readFile(fileOps)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &types.Config{}
	}

	applyEnvOverrides(config)
	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func readFile(fileOps fileops.FileOps) (*types.Config, error) {
	if err := fileOps.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := fileOps.LoadConfig(configFilename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config types.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// SaveConfig merges config into the default config file
func SaveConfig(config *types.Config) error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return Save(fileOps, config)
}

// Save merges config into the file kept by fileOps. Values left at their zero
// value in config keep what the file already has.
func Save(fileOps fileops.FileOps, config *types.Config) error {
	existingConfig, err := readFile(fileOps)
	if err != nil {
		logger.Warnf("Failed to load existing config: %v", err)
	} else if existingConfig != nil {
		mergeConfigs(existingConfig, config)
		config = existingConfig
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileOps.SaveConfig(configFilename, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// mergeConfigs copies every field explicitly set in sourceConfig into targetConfig
func mergeConfigs(targetConfig, sourceConfig *types.Config) {
	mergeString(&targetConfig.Backend, sourceConfig.Backend)
	if sourceConfig.ForceJSONRPC {
		targetConfig.ForceJSONRPC = true
	}
	mergeString(&targetConfig.ClientIdentifier, sourceConfig.ClientIdentifier)
	mergeString(&targetConfig.LogLevel, sourceConfig.LogLevel)

	mergeString(&targetConfig.COMRPC.CommunicatorPath, sourceConfig.COMRPC.CommunicatorPath)
	mergeString(&targetConfig.COMRPC.BusName, sourceConfig.COMRPC.BusName)
	mergeString(&targetConfig.COMRPC.ObjectPath, sourceConfig.COMRPC.ObjectPath)
	mergeInt(&targetConfig.COMRPC.Attempts, sourceConfig.COMRPC.Attempts)
	mergeInt(&targetConfig.COMRPC.CallTimeout, sourceConfig.COMRPC.CallTimeout)

	mergeString(&targetConfig.JSONRPC.Endpoint, sourceConfig.JSONRPC.Endpoint)
	mergeString(&targetConfig.JSONRPC.Callsign, sourceConfig.JSONRPC.Callsign)
	mergeInt(&targetConfig.JSONRPC.Attempts, sourceConfig.JSONRPC.Attempts)
	mergeInt(&targetConfig.JSONRPC.ConnectTimeout, sourceConfig.JSONRPC.ConnectTimeout)
	mergeInt(&targetConfig.JSONRPC.CallTimeout, sourceConfig.JSONRPC.CallTimeout)

	mergeString(&targetConfig.Firebolt.Endpoint, sourceConfig.Firebolt.Endpoint)
	mergeInt(&targetConfig.Firebolt.Attempts, sourceConfig.Firebolt.Attempts)
	mergeInt(&targetConfig.Firebolt.ConnectTimeout, sourceConfig.Firebolt.ConnectTimeout)
	mergeInt(&targetConfig.Firebolt.RequestTimeout, sourceConfig.Firebolt.RequestTimeout)

	mergeString(&targetConfig.Metrics.Bind, sourceConfig.Metrics.Bind)
}

func mergeString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func mergeInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

func applyEnvOverrides(config *types.Config) {
	overrideString(&config.Backend, "TTS_CLIENT_BACKEND")
	overridePresence(&config.ForceJSONRPC, "TTS_USE_THUNDER_CLIENT")
	overrideString(&config.ClientIdentifier, "CLIENT_IDENTIFIER")
	overrideString(&config.LogLevel, "TTS_LOG_LEVEL")
	overrideString(&config.COMRPC.CommunicatorPath, "COMMUNICATOR_PATH")
	overrideInt(&config.COMRPC.Attempts, "TTS_COMRPC_ATTEMPTS")
	overrideString(&config.JSONRPC.Endpoint, "THUNDER_ACCESS")
	overrideInt(&config.JSONRPC.CallTimeout, "TTS_JSONRPC_CALL_TIMEOUT_MS")
	overrideString(&config.Firebolt.Endpoint, "FIREBOLT_ENDPOINT")
	overrideInt(&config.Firebolt.RequestTimeout, "TTS_FIREBOLT_REQUEST_TIMEOUT_MS")
	overrideString(&config.Metrics.Bind, "TTS_METRICS_BIND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

// overridePresence sets target when envKey exists, whatever its value
func overridePresence(target *bool, envKey string) {
	if _, ok := os.LookupEnv(envKey); ok {
		*target = true
	}
}

func validate(config *types.Config) error {
	if config.LogLevel != "" && !contains(logLevels, strings.ToLower(config.LogLevel)) {
		return fmt.Errorf("log_level must be one of %s", strings.Join(logLevels, ", "))
	}
	limits := []struct {
		name  string
		value int
	}{
		{"comrpc.attempts", config.COMRPC.Attempts},
		{"comrpc.call_timeout_ms", config.COMRPC.CallTimeout},
		{"jsonrpc.attempts", config.JSONRPC.Attempts},
		{"jsonrpc.connect_timeout_ms", config.JSONRPC.ConnectTimeout},
		{"jsonrpc.call_timeout_ms", config.JSONRPC.CallTimeout},
		{"firebolt.attempts", config.Firebolt.Attempts},
		{"firebolt.connect_timeout_ms", config.Firebolt.ConnectTimeout},
		{"firebolt.request_timeout_ms", config.Firebolt.RequestTimeout},
	}
	for _, limit := range limits {
		if limit.value < 0 {
			return fmt.Errorf("%s must not be negative", limit.name)
		}
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
