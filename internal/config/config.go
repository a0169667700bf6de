package config

import (
	"os"
	"strings"

	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by all commands.
type Config struct {
	Path           string
	Logger         *logging.Logger
	Settings       Settings
	SettingsLoaded bool
}

// Settings is the prepctl.yaml structure. Every field has a default, and
// the file itself is optional.
type Settings struct {
	// AdminUser is the privileged login used for role management on each
	// database instance.
	AdminUser string `yaml:"adminUser"`

	// PasswordLength is the length of generated service passwords.
	PasswordLength int `yaml:"passwordLength"`

	// Engines is the allow-list of database engines eligible for
	// credential rotation.
	Engines []string `yaml:"engines"`

	// Region overrides the AWS region from the default credential chain.
	Region string `yaml:"region"`

	// AccountName prefixes the Terraform backend bucket name.
	AccountName string `yaml:"accountName"`

	// Endpoint, AccessKeyID and SecretAccessKey override the AWS endpoint
	// and credentials, for LocalStack-style testing.
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// Defaults returns the settings used when prepctl.yaml is absent.
func Defaults() Settings {
	return Settings{
		AdminUser:      "admin",
		PasswordLength: 12,
		Engines:        []string{"postgres", "aurora-postgresql"},
		AccountName:    "company",
	}
}

// EngineAllowed reports whether the engine is eligible for rotation.
func (s Settings) EngineAllowed(engine string) bool {
	for _, e := range s.Engines {
		if e == engine {
			return true
		}
	}
	return false
}

// Load reads prepctl.yaml if present, applies defaults for unset fields,
// and validates the result. A missing file is not an error.
func (c *Config) Load() error {
	if c.SettingsLoaded {
		return nil
	}

	settings := Defaults()

	data, err := os.ReadFile(c.Path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return perrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	default:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return perrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "invalid YAML: " + err.Error(),
				Suggestion: "Check for indentation errors and missing quotes",
			}
		}
		applyDefaults(&settings)
	}

	if err := validate(settings); err != nil {
		return err
	}

	c.Settings = settings
	c.SettingsLoaded = true
	return nil
}

func applyDefaults(s *Settings) {
	d := Defaults()
	if s.AdminUser == "" {
		s.AdminUser = d.AdminUser
	}
	if s.PasswordLength == 0 {
		s.PasswordLength = d.PasswordLength
	}
	if len(s.Engines) == 0 {
		s.Engines = d.Engines
	}
	if s.AccountName == "" {
		s.AccountName = d.AccountName
	}
}

func validate(s Settings) error {
	if s.PasswordLength < 1 {
		return perrors.ConfigError{
			Field:      "passwordLength",
			Value:      s.PasswordLength,
			Message:    "must be positive",
			Suggestion: "Set passwordLength to 12 or leave it unset",
		}
	}
	if strings.TrimSpace(s.AdminUser) == "" {
		return perrors.ConfigError{
			Field:      "adminUser",
			Message:    "must not be blank",
			Suggestion: "Set adminUser to the privileged database login, or leave it unset",
		}
	}
	for _, e := range s.Engines {
		if strings.TrimSpace(e) == "" {
			return perrors.ConfigError{
				Field:      "engines",
				Value:      s.Engines,
				Message:    "contains a blank engine name",
				Suggestion: "List engine names like postgres or aurora-postgresql",
			}
		}
	}
	return nil
}
