// Package config loads server configuration from a YAML file and
// overlays it with environment variables, the same two-source layering
// the original Roughtime reference server used so operators can keep
// secrets (the seed) out of the YAML file on disk.
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Protection names how Seed must be interpreted: as 32 bytes of key
// material directly, or as an opaque blob that must be decrypted through
// a KMS before use.
type Protection struct {
	Plaintext bool
	KMSKeyID  string // set when !Plaintext
}

// DefaultBatchSize and DefaultStatusInterval mirror the reference
// server's defaults: up to 64 client nonces share one signed batch, and
// the server logs its counters every 10 minutes.
const (
	DefaultBatchSize      = 64
	DefaultStatusInterval = 600 * time.Second
	// DefaultRadiusMicros is the uncertainty radius reported in RADI when
	// radius_micros is left unset: 1 second, a conservative default for a
	// server with no direct GPS/atomic reference.
	DefaultRadiusMicros = 1_000_000
)

// Config is the complete, validated configuration surface of the server.
type Config struct {
	Interface       string        `yaml:"interface"`
	Port            int           `yaml:"port"`
	Seed            string        `yaml:"seed"` // hex-encoded; plaintext or KMS ciphertext
	BatchSize       int           `yaml:"batch_size"`
	StatusInterval  time.Duration `yaml:"-"`
	StatusIntervalS int           `yaml:"status_interval"` // seconds, as written in YAML
	KMSProtection   string        `yaml:"kms_protection"`  // "plaintext" or "kms(<key-id>)"
	HealthCheckPort int           `yaml:"health_check_port"`
	RadiusMicros    uint32        `yaml:"radius_micros"` // reported in RADI on every SREP

	Protection Protection `yaml:"-"`
}

// Load reads path as YAML, expands ${VAR}/${VAR:default} references in
// its string fields, overlays any ROUGHENOUGH_* environment variables
// present, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
		expandFields(&cfg)
	}
	overlayEnv(&cfg)
	applyDefaults(&cfg)
	if err := parseProtection(&cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a Config purely from ROUGHENOUGH_* environment
// variables, with no YAML file backing it at all. It lets the server be
// driven entirely by its process environment, e.g. under an orchestrator
// that injects config as env vars rather than a mounted file.
func FromEnv() (*Config, error) {
	return Load("")
}

// expandFields resolves ${VAR} and ${VAR:default} references in every
// YAML string field that may reasonably carry one: interface, seed, and
// kms_protection. Numeric and boolean fields have no use for expansion.
func expandFields(c *Config) {
	c.Interface = expandEnvDefault(c.Interface)
	c.Seed = expandEnvDefault(c.Seed)
	c.KMSProtection = expandEnvDefault(c.KMSProtection)
}

var envRefPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvDefault replaces ${VAR} with os.Getenv("VAR") and
// ${VAR:default} with the env value, falling back to default if VAR is
// unset. A reference to an unset VAR with no default expands to "".
func expandEnvDefault(s string) string {
	if s == "" {
		return s
	}
	return envRefPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envRefPattern.FindStringSubmatch(m)
		if len(parts) != 3 {
			return m
		}
		name, def := parts[1], parts[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// overlayEnv applies the ROUGHENOUGH_* environment variables documented
// for the reference server, each one taking precedence over whatever the
// YAML file set.
func overlayEnv(c *Config) {
	if v, ok := os.LookupEnv("ROUGHENOUGH_INTERFACE"); ok {
		c.Interface = v
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_SEED"); ok {
		c.Seed = v
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_BATCH_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_STATUS_INTERVAL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.StatusIntervalS = n
		}
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_KMS_PROTECTION"); ok {
		c.KMSProtection = v
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_HEALTH_CHECK_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.HealthCheckPort = n
		}
	}
	if v, ok := os.LookupEnv("ROUGHENOUGH_RADIUS_MICROS"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.RadiusMicros = uint32(n)
		}
	}
}

func applyDefaults(c *Config) {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.StatusIntervalS == 0 {
		c.StatusInterval = DefaultStatusInterval
	} else {
		c.StatusInterval = time.Duration(c.StatusIntervalS) * time.Second
	}
	if c.KMSProtection == "" {
		c.KMSProtection = "plaintext"
	}
	if c.RadiusMicros == 0 {
		c.RadiusMicros = DefaultRadiusMicros
	}
}

func validate(c *Config) error {
	if c.Port == 0 {
		return fmt.Errorf("config: port must be set")
	}
	if c.Interface == "" {
		return fmt.Errorf("config: interface must be set")
	}
	if c.Seed == "" {
		return fmt.Errorf("config: seed must be set")
	}
	seed, err := hex.DecodeString(c.Seed)
	if err != nil {
		return fmt.Errorf("config: seed must be hexadecimal: %w", err)
	}
	if c.Protection.Plaintext && len(seed) != 32 {
		return fmt.Errorf("config: plaintext seed must decode to 32 bytes, got %d", len(seed))
	}
	if !c.Protection.Plaintext && len(seed) <= 32 {
		return fmt.Errorf("config: kms-protected seed must decode to more than 32 bytes, got %d", len(seed))
	}
	if c.BatchSize < 1 || c.BatchSize > 64 {
		return fmt.Errorf("config: batch_size must be between 1 and 64, got %d", c.BatchSize)
	}
	if _, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.Interface, strconv.Itoa(c.Port))); err != nil {
		return fmt.Errorf("config: invalid interface/port: %w", err)
	}
	return nil
}

func parseProtection(c *Config) error {
	if c.KMSProtection == "plaintext" {
		c.Protection = Protection{Plaintext: true}
		return nil
	}
	id, ok := parseKMSKeyID(c.KMSProtection)
	if !ok {
		return fmt.Errorf("config: kms_protection must be %q or %q, got %q", "plaintext", "kms(<key-id>)", c.KMSProtection)
	}
	c.Protection = Protection{Plaintext: false, KMSKeyID: id}
	return nil
}

// parseKMSKeyID extracts <key-id> from a "kms(<key-id>)" string.
func parseKMSKeyID(s string) (string, bool) {
	const prefix, suffix = "kms(", ")"
	if len(s) < len(prefix)+len(suffix) {
		return "", false
	}
	if s[:len(prefix)] != prefix || s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	id := s[len(prefix) : len(s)-len(suffix)]
	if id == "" {
		return "", false
	}
	return id, true
}

// UDPAddr returns the resolved address the server should bind.
func (c *Config) UDPAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(c.Interface, strconv.Itoa(c.Port)))
}
