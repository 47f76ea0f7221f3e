package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/gardentiller/tiller/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Validation.Workers == 0 {
		cfg.Validation.Workers = 3
	}
	if cfg.Resilience.MaxTries == 0 {
		cfg.Resilience.MaxTries = 3
	}
	if cfg.Resilience.RetryDelay == 0 {
		cfg.Resilience.RetryDelay = 2
	}
	if cfg.Resilience.CircuitThreshold == 0 {
		cfg.Resilience.CircuitThreshold = 5
	}
	if cfg.Resilience.ResetTimeout == 0 {
		cfg.Resilience.ResetTimeout = 60
	}
	if cfg.Resilience.Timeout == 0 {
		cfg.Resilience.Timeout = 30
	}
	if cfg.Resilience.FallbackMessage == "" {
		cfg.Resilience.FallbackMessage = "COMMAND_FAILED"
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Validation.Workers < 1 {
		return fmt.Errorf("validation.workers must be positive, got %d", cfg.Validation.Workers)
	}
	seen := make(map[string]bool, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		if h.Name == "" {
			return fmt.Errorf("hosts[%d]: name is required", i)
		}
		if seen[h.Name] {
			return fmt.Errorf("hosts[%d]: duplicate host name %q", i, h.Name)
		}
		seen[h.Name] = true
		if h.BMCAddress == "" {
			return fmt.Errorf("host %s: bmc_address is required", h.Name)
		}
		if !h.BMCType.Valid() {
			return fmt.Errorf("host %s: bmc_type must be %q or %q, got %q",
				h.Name, domain.BMCTypeILO, domain.BMCTypeIDRAC, h.BMCType)
		}
	}
	return nil
}

// ResolveHosts materializes LabHosts from the config, reading each
// password from its configured environment variable.
func (cfg *AppConfig) ResolveHosts() ([]domain.LabHost, error) {
	hosts := make([]domain.LabHost, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		password := ""
		if h.PasswordEnv != "" {
			password = os.Getenv(h.PasswordEnv)
			if password == "" {
				return nil, fmt.Errorf("host %s: environment variable %s is not set", h.Name, h.PasswordEnv)
			}
		}
		hosts = append(hosts, domain.LabHost{
			Name:       h.Name,
			BMCAddress: h.BMCAddress,
			BMCType:    h.BMCType,
			Username:   h.Username,
			Password:   password,
			VerifySSL:  h.VerifySSL,
		})
	}
	return hosts, nil
}
