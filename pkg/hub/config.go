package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RestConfigFile is the configuration file name the vendor tooling expects.
const RestConfigFile = ".restconfig.json"

// defaultTimeout matches the vendor library's default HTTP timeout.
const defaultTimeout = 120 * time.Second

// ErrNoConfiguration is returned when neither environment variables nor a
// .restconfig.json file provide the server URL and API token.
var ErrNoConfiguration = errors.New(
	"no Black Duck configuration found: set BLACKDUCK_URL and BLACKDUCK_API_TOKEN, or create " + RestConfigFile)

// ConfigSource identifies where the configuration was resolved from.
type ConfigSource string

const (
	// SourceEnvironment means the configuration came from BLACKDUCK_* environment variables.
	SourceEnvironment ConfigSource = "environment variables"
	// SourceRestConfig means the configuration came from a .restconfig.json file.
	SourceRestConfig ConfigSource = RestConfigFile + " file"
)

// Config holds the connection settings for a Black Duck server.
type Config struct {
	BaseURL   string
	APIToken  string
	Source    ConfigSource
	Timeout   time.Duration
	TrustCert bool
}

// restConfig mirrors the vendor library's .restconfig.json layout.
type restConfig struct {
	BaseURL   string `json:"baseurl"`
	APIToken  string `json:"api_token"`
	Timeout   int    `json:"timeout"`
	TrustCert bool   `json:"trust_cert"`
}

// LoadConfig resolves the server configuration from dir.
// Resolution order follows the vendor tooling: a .env file (if present) is
// loaded first, then BLACKDUCK_URL/BLACKDUCK_API_TOKEN environment variables
// take precedence, then .restconfig.json in dir. TrustCert defaults to true
// because most on-prem servers run with self-signed certificates.
func LoadConfig(dir string) (*Config, error) {
	godotenv.Load(filepath.Join(dir, ".env")) //nolint:errcheck // a missing .env file is not an error

	baseURL := os.Getenv("BLACKDUCK_URL")
	apiToken := os.Getenv("BLACKDUCK_API_TOKEN")
	if baseURL != "" && apiToken != "" {
		cfg := &Config{
			BaseURL:   strings.TrimRight(baseURL, "/"),
			APIToken:  apiToken,
			Timeout:   defaultTimeout,
			TrustCert: true,
			Source:    SourceEnvironment,
		}
		if v := os.Getenv("BLACKDUCK_TIMEOUT"); v != "" {
			secs, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid BLACKDUCK_TIMEOUT %q: %w", v, err)
			}
			cfg.Timeout = time.Duration(secs) * time.Second
		}
		if v := os.Getenv("BLACKDUCK_TRUST_CERT"); v != "" {
			cfg.TrustCert = strings.EqualFold(v, "true")
		}
		return cfg, nil
	}

	return loadRestConfig(filepath.Join(dir, RestConfigFile))
}

func loadRestConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfiguration
		}
		return nil, fmt.Errorf("error reading %s: %w", RestConfigFile, err)
	}

	var rc restConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("%s contains invalid JSON: %w", RestConfigFile, err)
	}
	if rc.BaseURL == "" || rc.APIToken == "" {
		return nil, fmt.Errorf("%s is missing required fields: baseurl and api_token must both be set", RestConfigFile)
	}

	cfg := &Config{
		BaseURL:   strings.TrimRight(rc.BaseURL, "/"),
		APIToken:  rc.APIToken,
		Timeout:   defaultTimeout,
		TrustCert: rc.TrustCert,
		Source:    SourceRestConfig,
	}
	if rc.Timeout > 0 {
		cfg.Timeout = time.Duration(rc.Timeout) * time.Second
	}
	return cfg, nil
}

// WriteRestConfig persists cfg as a .restconfig.json in dir so later
// invocations work without environment variables. The file carries the API
// token, so it is written owner read/write only.
func WriteRestConfig(cfg *Config, dir string) error {
	rc := restConfig{
		BaseURL:   cfg.BaseURL,
		APIToken:  cfg.APIToken,
		Timeout:   int(cfg.Timeout / time.Second),
		TrustCert: cfg.TrustCert,
	}
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", RestConfigFile, err)
	}
	path := filepath.Join(dir, RestConfigFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", RestConfigFile, err)
	}
	return nil
}
