// Package config provides configuration management for the wave gateway.
// Configuration is a YAML document decoded on top of DefaultConfig, with
// ${VAR} and ${VAR:-default} references expanded from the environment first.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server             ServerConfig              `yaml:"server"`
	Logging            LoggingConfig             `yaml:"logging"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
	ProviderPreference []string                  `yaml:"provider_preference"` // Order of provider preference
	CircuitBreaker     CircuitBreakerConfig      `yaml:"circuit_breaker"`
	Memory             MemoryConfig              `yaml:"memory"`
	Routing            RoutingConfig             `yaml:"routing"`
	Personas           PersonaConfig             `yaml:"personas"`
	Diary              DiaryConfig               `yaml:"diary"`
	RateLimit          RateLimitConfig           `yaml:"rate_limit"`
	HealthCheck        HealthCheckConfig         `yaml:"health_check"`
	Sessions           SessionConfig             `yaml:"sessions"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8000)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must exceed the slowest provider chain (default: 90s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout is the deadline attached to every request context. It must
	// cover ChainBudget; zero disables it (default: 75s)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxMessageTokens rejects chat messages longer than this many tokens.
	// Zero disables the check.
	MaxMessageTokens int `yaml:"max_message_tokens"`

	// TokenizerModel selects the tiktoken encoding used for MaxMessageTokens
	TokenizerModel string `yaml:"tokenizer_model"`
}

// ProviderConfig describes one LLM backend.
type ProviderConfig struct {
	// Type selects the implementation: hyperclova, openai, ollama, gollm, ark, gemini
	Type string `yaml:"type"`

	// Model is the upstream model name (ignored by hyperclova, which encodes it in the URL)
	Model string `yaml:"model"`

	// APIKey is the primary credential. An empty key marks the provider unconfigured.
	APIKey string `yaml:"api_key"`

	// SecondaryKey is the HyperCLOVA API gateway key
	SecondaryKey string `yaml:"secondary_key,omitempty"`

	// BaseURL overrides the default endpoint
	BaseURL string `yaml:"base_url,omitempty"`

	// Backend is the gollm provider name (openai, anthropic, groq, ollama)
	Backend string `yaml:"backend,omitempty"`

	// Region is used by ark
	Region string `yaml:"region,omitempty"`

	// Timeout bounds a single call (default: 30s)
	Timeout time.Duration `yaml:"timeout"`

	// Temperature and MaxTokens are the chat defaults for this provider
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Configured reports whether all credentials the provider type needs are present.
func (p ProviderConfig) Configured() bool {
	switch p.Type {
	case "hyperclova":
		return p.APIKey != "" && p.SecondaryKey != ""
	default:
		return p.APIKey != ""
	}
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// CircuitBreakerConfig configures the breaker wrapped around each provider.
type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// MemoryConfig selects and sizes the session memory backend.
type MemoryConfig struct {
	// Backend is "memory" (in-process) or "redis"
	Backend string `yaml:"backend"`

	// Window is the number of user/assistant exchanges kept per session (default: 10)
	Window int `yaml:"window"`

	// Redis is only used when Backend is "redis"
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for session memory.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// RoutingConfig controls group chat character selection.
type RoutingConfig struct {
	// Strategy is keyword, hybrid or llm
	Strategy string `yaml:"strategy"`

	// DefaultCharacter answers when no signal selects anyone
	DefaultCharacter string `yaml:"default_character"`

	// Provider pins LLM classification to one provider; empty uses ProviderPreference
	Provider string `yaml:"provider"`
}

// PersonaConfig points at an optional persona document replacing the built-in one.
type PersonaConfig struct {
	File string `yaml:"file"`
}

// DiaryConfig configures diary drafting.
type DiaryConfig struct {
	// ArchivePath is a sqlite file where generated drafts are kept. Empty disables the archive.
	ArchivePath string `yaml:"archive_path"`
}

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// HealthCheckConfig controls periodic provider probes.
type HealthCheckConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SessionConfig controls the idle session sweep. A zero IdleTTL disables it.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns a configuration that runs without any file: both
// original providers read their credentials from the environment and the
// gateway falls back to canned replies until they are set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     90 * time.Second,
			MaxHeaderBytes:   1 << 20,
			ShutdownTimeout:  30 * time.Second,
			RequestTimeout:   75 * time.Second,
			MaxMessageTokens: 2048,
			TokenizerModel:   "gpt-4",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Providers: map[string]ProviderConfig{
			"hyperclova": {
				Type:         "hyperclova",
				APIKey:       os.Getenv("NAVER_CLOVA_API_KEY"),
				SecondaryKey: os.Getenv("NAVER_CLOVA_APIGW_KEY"),
				Timeout:      30 * time.Second,
				Temperature:  0.7,
				MaxTokens:    256,
			},
			"ollama": {
				Type:        "ollama",
				Model:       envOr("OLLAMA_MODEL", "llama3.1"),
				APIKey:      envOr("OLLAMA_CLOUD_API_KEY", os.Getenv("OLLAMA_API_KEY")),
				BaseURL:     envOr("OLLAMA_CLOUD_BASE_URL", "https://api.ollama.ai/v1"),
				Timeout:     30 * time.Second,
				Temperature: 0.8,
				MaxTokens:   150,
			},
		},

		ProviderPreference: []string{
			"hyperclova",
			"ollama",
		},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 3,
		},

		Memory: MemoryConfig{
			Backend: "memory",
			Window:  10,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "wave:memory:",
			},
		},

		Routing: RoutingConfig{
			Strategy:         "keyword",
			DefaultCharacter: "char_1",
		},

		RateLimit: RateLimitConfig{
			Enabled:  false,
			Requests: 60,
			Window:   time.Minute,
		},

		HealthCheck: HealthCheckConfig{
			Enabled:  false,
			Interval: 5 * time.Minute,
			Timeout:  10 * time.Second,
		},

		Sessions: SessionConfig{
			SweepInterval: 10 * time.Minute,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. Values that
// themselves contain references are expanded again until stable.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("invalid syntax: unterminated variable reference")
	}

	resolve := func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}

	result := os.Expand(s, resolve)
	for i := 0; i < 8 && strings.Contains(result, "${"); i++ {
		next := os.Expand(result, resolve)
		if next == result {
			break
		}
		result = next
	}
	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()

	// A providers section replaces the env-derived defaults entirely
	var probe struct {
		Providers map[string]ProviderConfig `yaml:"providers"`
	}
	if err := yaml.Unmarshal([]byte(expanded), &probe); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if probe.Providers != nil {
		config.Providers = nil
	}

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.applyProviderDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

func (c *Config) applyProviderDefaults() {
	for name, p := range c.Providers {
		if p.Type == "" {
			p.Type = name
		}
		if p.Timeout == 0 {
			p.Timeout = defaultProviderTimeout
		}
		c.Providers[name] = p
	}
}

// defaultProviderTimeout applies to providers configured without a timeout.
const defaultProviderTimeout = 30 * time.Second

// ChainBudget is the longest a chat request can wait on providers: the
// preference chain once for the reply and, under llm or hybrid routing, the
// classifier chain before it.
func (c *Config) ChainBudget() time.Duration {
	chain := func(names []string) time.Duration {
		var total time.Duration
		for _, name := range names {
			d := c.Providers[name].Timeout
			if d <= 0 {
				d = defaultProviderTimeout
			}
			total += d
		}
		return total
	}

	budget := chain(c.ProviderPreference)
	switch c.Routing.Strategy {
	case "llm", "hybrid":
		if c.Routing.Provider != "" {
			budget += chain([]string{c.Routing.Provider})
		} else {
			budget += chain(c.ProviderPreference)
		}
	}
	return budget
}

var (
	providerTypes = map[string]bool{
		"hyperclova": true, "openai": true, "ollama": true,
		"gollm": true, "ark": true, "gemini": true,
	}
	routingStrategies = map[string]bool{"keyword": true, "hybrid": true, "llm": true}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Server.RequestTimeout)
	}
	if c.Server.MaxMessageTokens < 0 {
		return fmt.Errorf("negative max message tokens: %d", c.Server.MaxMessageTokens)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Provider validation
	for name, p := range c.Providers {
		if !providerTypes[p.Type] {
			return fmt.Errorf("provider %s: unknown type %q", name, p.Type)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("provider %s: negative timeout: %v", name, p.Timeout)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("provider %s: negative max tokens: %d", name, p.MaxTokens)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("provider %s: temperature must be between 0 and 2", name)
		}
		if p.Type == "gollm" && p.Backend == "" {
			return fmt.Errorf("provider %s: gollm provider requires a backend", name)
		}
	}
	seen := make(map[string]bool, len(c.ProviderPreference))
	for _, name := range c.ProviderPreference {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("provider preference references unknown provider: %s", name)
		}
		if seen[name] {
			return fmt.Errorf("provider preference lists %s twice", name)
		}
		seen[name] = true
	}

	// Circuit breaker validation
	if c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}
	if c.CircuitBreaker.Timeout < 0 || c.CircuitBreaker.Interval < 0 {
		return fmt.Errorf("negative circuit breaker duration")
	}

	// Memory validation
	switch c.Memory.Backend {
	case "memory":
	case "redis":
		if c.Memory.Redis.Address == "" {
			return fmt.Errorf("redis memory backend requires an address")
		}
	default:
		return fmt.Errorf("invalid memory backend: %s", c.Memory.Backend)
	}
	if c.Memory.Window <= 0 {
		return fmt.Errorf("memory window must be positive: %d", c.Memory.Window)
	}

	// Routing validation
	if !routingStrategies[c.Routing.Strategy] {
		return fmt.Errorf("invalid routing strategy: %s", c.Routing.Strategy)
	}
	if c.Routing.DefaultCharacter == "" {
		return fmt.Errorf("empty default character")
	}
	if c.Routing.Provider != "" {
		if _, ok := c.Providers[c.Routing.Provider]; !ok {
			return fmt.Errorf("routing provider references unknown provider: %s", c.Routing.Provider)
		}
	}

	if rt := c.Server.RequestTimeout; rt > 0 {
		if budget := c.ChainBudget(); rt < budget {
			return fmt.Errorf("request timeout %v is shorter than the worst-case provider chain %v for %s routing",
				rt, budget, c.Routing.Strategy)
		}
	}

	// Rate limit validation
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requires positive requests and window")
	}

	// Health check validation
	if c.HealthCheck.Enabled && c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	if c.Sessions.IdleTTL < 0 {
		return fmt.Errorf("negative session idle ttl: %v", c.Sessions.IdleTTL)
	}
	if c.Sessions.IdleTTL > 0 && c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive when idle ttl is set")
	}

	return nil
}
