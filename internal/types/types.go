package types

import "strings"

// Backend names a remote TTS service protocol
type Backend string

const (
	BackendCOMRPC   Backend = "comrpc"
	BackendJSONRPC  Backend = "jsonrpc"
	BackendFirebolt Backend = "firebolt"
)

// KnownBackends lists backends in selection order
var KnownBackends = []Backend{BackendCOMRPC, BackendJSONRPC, BackendFirebolt}

// COMRPCConfig holds settings for the binary RPC backend
type COMRPCConfig struct {
	CommunicatorPath string `yaml:"communicator_path"` // unix socket of the communicator bus
	BusName          string `yaml:"bus_name"`
	ObjectPath       string `yaml:"object_path"`
	Attempts         int    `yaml:"attempts"`        // connect budget
	CallTimeout      int    `yaml:"call_timeout_ms"` // per call
}

// JSONRPCConfig holds settings for the JSON-RPC backend
type JSONRPCConfig struct {
	Endpoint       string `yaml:"endpoint"` // host:port, e.g. 127.0.0.1:9998
	Callsign       string `yaml:"callsign"` // service callsign prefixed to every method
	Attempts       int    `yaml:"attempts"`
	ConnectTimeout int    `yaml:"connect_timeout_ms"`
	CallTimeout    int    `yaml:"call_timeout_ms"`
}

// FireboltConfig holds settings for the vendor SDK backend
type FireboltConfig struct {
	Endpoint       string `yaml:"endpoint"` // nats://host:port
	Attempts       int    `yaml:"attempts"`
	ConnectTimeout int    `yaml:"connect_timeout_ms"`
	RequestTimeout int    `yaml:"request_timeout_ms"`
}

// MetricsConfig holds settings for the Prometheus exporter
type MetricsConfig struct {
	Bind string `yaml:"bind"` // empty disables the exporter
}

// Config is the process configuration consumed at adapter selection and connect time
type Config struct {
	Backend          string         `yaml:"backend"`       // explicit backend override
	ForceJSONRPC     bool           `yaml:"force_jsonrpc"` // legacy override, wins over everything
	ClientIdentifier string         `yaml:"client_identifier"`
	LogLevel         string         `yaml:"log_level"`
	COMRPC           COMRPCConfig   `yaml:"comrpc"`
	JSONRPC          JSONRPCConfig  `yaml:"jsonrpc"`
	Firebolt         FireboltConfig `yaml:"firebolt"`
	Metrics          MetricsConfig  `yaml:"metrics"`
}

// Callsign returns the subscription key: the first comma-separated token of the client identifier
func (c *Config) Callsign() string {
	callsign, _, _ := strings.Cut(c.ClientIdentifier, ",")
	return callsign
}

// GetCOMRPCConfig returns binary RPC configuration with defaults
func (c *Config) GetCOMRPCConfig() COMRPCConfig {
	config := c.COMRPC
	if config.CommunicatorPath == "" {
		config.CommunicatorPath = "/tmp/communicator"
	}
	if config.BusName == "" {
		config.BusName = "org.rdk.TextToSpeech"
	}
	if config.ObjectPath == "" {
		config.ObjectPath = "/org/rdk/TextToSpeech"
	}
	if config.Attempts == 0 {
		config.Attempts = 3
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = 3000
	}
	return config
}

// GetJSONRPCConfig returns JSON-RPC configuration with defaults
func (c *Config) GetJSONRPCConfig() JSONRPCConfig {
	config := c.JSONRPC
	if config.Endpoint == "" {
		config.Endpoint = "127.0.0.1:9998"
	}
	if config.Callsign == "" {
		config.Callsign = "org.rdk.TextToSpeech.1"
	}
	if config.Attempts == 0 {
		config.Attempts = 1
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 200
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = 3000
	}
	return config
}

// GetFireboltConfig returns vendor SDK configuration with defaults
func (c *Config) GetFireboltConfig() FireboltConfig {
	config := c.Firebolt
	if config.Attempts == 0 {
		config.Attempts = 1
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 200
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 3000
	}
	return config
}
