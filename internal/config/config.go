// Package config manages the accountctl configuration file and the merge of
// CLI flag overrides on top of it.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultLogLevel    = "info"
	DefaultPollAttempt = 30
	DefaultPollSecs    = 10
)

// EmailConfig holds the pieces of the generated account email address.
type EmailConfig struct {
	Prefix string `yaml:"prefix"`
	Domain string `yaml:"domain"`
}

// PollingConfig bounds the creation and closure status poll loops.
type PollingConfig struct {
	MaxAttempts     int `yaml:"max_attempts"`
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Config is the full tool configuration. File values are overridden by CLI
// flags before validation; nothing remote is touched until Validate passes.
type Config struct {
	MgmtProfile       string `yaml:"mgmt_profile"`
	ManagementRoleARN string `yaml:"management_role_arn"`
	AutomationProfile string `yaml:"automation_profile"`
	AutomationRoleARN string `yaml:"automation_role_arn"`

	Region           string `yaml:"region"`
	SSMParameterPath string `yaml:"ssm_parameter_path"`

	Email         EmailConfig       `yaml:"email"`
	DefaultOUName string            `yaml:"default_ou_name"`
	OUID          string            `yaml:"ou_id"`
	Tags          map[string]string `yaml:"tags"`

	ValidationRoleName string        `yaml:"validation_role_name"`
	Polling            PollingConfig `yaml:"polling"`
	LogLevel           string        `yaml:"log_level"`

	// EmailOverride comes only from the --email flag, never from the file.
	// It skips the sequence counter entirely.
	EmailOverride string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ValidationRoleName: "OrganizationAccountAccessRole",
		Polling: PollingConfig{
			MaxAttempts:     DefaultPollAttempt,
			IntervalSeconds: DefaultPollSecs,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads the YAML config file at path. A missing file yields defaults;
// validation catches any fields a command actually needs.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Polling.MaxAttempts <= 0 {
		cfg.Polling.MaxAttempts = DefaultPollAttempt
	}
	if cfg.Polling.IntervalSeconds <= 0 {
		cfg.Polling.IntervalSeconds = DefaultPollSecs
	}
	if cfg.ValidationRoleName == "" {
		cfg.ValidationRoleName = "OrganizationAccountAccessRole"
	}
	return cfg, nil
}

// Overrides holds the CLI flag values that take precedence over the file.
type Overrides struct {
	MgmtProfile       string
	ManagementRoleARN string
	AutomationProfile string
	AutomationRoleARN string
	OUName            string
	OUID              string
	Email             string
}

// Merge applies non-empty CLI overrides onto cfg.
func Merge(cfg Config, o Overrides) Config {
	if o.MgmtProfile != "" {
		cfg.MgmtProfile = o.MgmtProfile
	}
	if o.ManagementRoleARN != "" {
		cfg.ManagementRoleARN = o.ManagementRoleARN
	}
	if o.AutomationProfile != "" {
		cfg.AutomationProfile = o.AutomationProfile
	}
	if o.AutomationRoleARN != "" {
		cfg.AutomationRoleARN = o.AutomationRoleARN
	}
	if o.OUName != "" {
		cfg.DefaultOUName = o.OUName
	}
	if o.OUID != "" {
		cfg.OUID = o.OUID
	}
	if o.Email != "" {
		cfg.EmailOverride = o.Email
	}
	return cfg
}

// ValidateManagement checks the fields every command needs: a way to reach
// the management account.
func ValidateManagement(cfg Config) error {
	if cfg.MgmtProfile == "" && cfg.ManagementRoleARN == "" {
		return fmt.Errorf("must provide either mgmt_profile or management_role_arn")
	}
	return nil
}

// ValidateCreate checks everything account creation needs before any remote
// call is made. With an explicit email override, the counter and the email
// template are not consulted, so only management access is required.
func ValidateCreate(cfg Config) error {
	if err := ValidateManagement(cfg); err != nil {
		return err
	}
	if cfg.EmailOverride != "" {
		if !strings.Contains(cfg.EmailOverride, "@") {
			return fmt.Errorf("email override %q is not a valid address", cfg.EmailOverride)
		}
		return nil
	}

	var missing []string
	if cfg.SSMParameterPath == "" {
		missing = append(missing, "ssm_parameter_path")
	}
	if cfg.Email.Prefix == "" {
		missing = append(missing, "email.prefix")
	}
	if cfg.Email.Domain == "" {
		missing = append(missing, "email.domain")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %s", strings.Join(missing, ", "))
	}
	if cfg.AutomationProfile == "" && cfg.AutomationRoleARN == "" {
		return fmt.Errorf("must provide either automation_profile or automation_role_arn")
	}
	return nil
}
