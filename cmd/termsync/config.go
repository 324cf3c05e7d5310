package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/termsync/internal/auth"
	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/httpc"
	"github.com/loykin/termsync/internal/orchestrator"
	"github.com/loykin/termsync/internal/process"
	"github.com/loykin/termsync/internal/retry"
	"gopkg.in/yaml.v3"
)

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

// CredentialConfig is one orchestrator credential. PasswordFromEnv keeps the
// secret out of the file.
type CredentialConfig struct {
	Name            string `mapstructure:"name" yaml:"name"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password"`
	PasswordFromEnv string `mapstructure:"password_from_env" yaml:"password_from_env"`
}

// ConstantConfig is one orchestrator constant.
type ConstantConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Value        string `mapstructure:"value" yaml:"value"`
	ValueFromEnv string `mapstructure:"value_from_env" yaml:"value_from_env"`
}

type DatabaseConfig struct {
	Retry *retry.Config `mapstructure:"retry" yaml:"retry"`
}

type WaitConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Method   string `mapstructure:"method" yaml:"method"`
	Status   int    `mapstructure:"status" yaml:"status"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

type ConfigDoc struct {
	Logging     LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Client      httpc.Options      `mapstructure:"client" yaml:"client"`
	Auth        auth.Config        `mapstructure:"auth" yaml:"auth"`
	Credentials []CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
	Constants   []ConstantConfig   `mapstructure:"constants" yaml:"constants"`
	Database    DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Metrics     process.PushConfig `mapstructure:"metrics" yaml:"metrics"`
	Wait        WaitConfig         `mapstructure:"wait" yaml:"wait"`
	// MaxPages bounds a taxonomy NextHref chain. 0 uses the built-in limit.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// ProcessArguments is used when neither the flag nor the environment provides them.
	ProcessArguments string `mapstructure:"process_arguments" yaml:"process_arguments"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the operator; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	return dec.Decode(c)
}

func fromEnv(value, envVar, name string) string {
	if value != "" || strings.TrimSpace(envVar) == "" {
		return value
	}
	v := os.Getenv(envVar)
	if v == "" {
		slog.Warn("env variable requested but empty or not set", "name", name, "env_var", envVar)
	}
	return v
}

// Connection builds the local orchestrator connection. overrides win over
// constants from the file.
func (c *ConfigDoc) Connection(arguments string, overrides map[string]string) (*orchestrator.Local, error) {
	conn := orchestrator.NewLocal(arguments)
	for i, cr := range c.Credentials {
		name := strings.TrimSpace(cr.Name)
		if name == "" {
			return nil, fmt.Errorf("credentials[%d]: missing name", i)
		}
		conn.Credentials[name] = orchestrator.Credential{
			Username: strings.TrimSpace(cr.Username),
			Password: fromEnv(cr.Password, cr.PasswordFromEnv, name),
		}
	}
	for i, kv := range c.Constants {
		name := strings.TrimSpace(kv.Name)
		if name == "" {
			return nil, fmt.Errorf("constants[%d]: missing name", i)
		}
		conn.Constants[name] = fromEnv(kv.Value, kv.ValueFromEnv, name)
	}
	for k, v := range overrides {
		conn.Overrides[k] = v
	}
	conn.SetLogger(common.GetLogger().WithComponent("orchestrator"))
	return conn, nil
}

// Deps maps the file onto the process dependencies.
func (c *ConfigDoc) Deps() process.Deps {
	return process.Deps{
		HTTP:     c.Client,
		Auth:     c.Auth,
		Retry:    c.Database.Retry,
		MaxPages: c.MaxPages,
		Metrics:  c.Metrics,
	}
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "error":
		return common.LogLevelError, nil
	case "warn", "warning":
		return common.LogLevelWarn, nil
	case "info", "":
		return common.LogLevelInfo, nil
	case "debug":
		return common.LogLevelDebug, nil
	default:
		return common.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *common.Logger
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))

	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour":
		logger = common.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = common.NewColorLogger(level)
		} else {
			logger = common.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	common.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", level.String(),
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}
