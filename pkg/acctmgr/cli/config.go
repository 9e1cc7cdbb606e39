package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/base"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/prompt"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/provision"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/report"
	"github.com/prometheus/common/model"
)

// Config contains the acctmgr configuration settings.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	WCKeys  WCKeysConfig  `yaml:"wckeys"`
	Prompt  PromptConfig  `yaml:"prompt"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notice  NoticeConfig  `yaml:"notice"`
}

// StorageConfig contains the accounting database settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WCKeysConfig contains the charge key settings.
type WCKeysConfig struct {
	Track        bool   `yaml:"track"`
	LookupPolicy string `yaml:"lookup_policy"`
}

// PromptConfig contains the confirmation settings.
type PromptConfig struct {
	Immediate bool           `yaml:"immediate"`
	Timeout   model.Duration `yaml:"timeout"`
}

// OutputConfig contains the report settings.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// MetricsConfig contains the metrics settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NoticeConfig contains the busy notice settings.
type NoticeConfig struct {
	BusyAfter model.Duration `yaml:"busy_after"`
}

// defaultConfig returns the config used when no file is found.
func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{Path: base.DefaultStoragePath},
		WCKeys:  WCKeysConfig{LookupPolicy: string(provision.WCKeyTolerate)},
		Prompt:  PromptConfig{Timeout: model.Duration(prompt.DefaultTimeout)},
		Output:  OutputConfig{Format: string(report.FormatTable)},
		Notice:  NoticeConfig{BusyAfter: model.Duration(5 * time.Second)},
	}
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Set a default config
	*c = defaultConfig()

	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path cannot be empty")
	}

	if _, err := provision.ParseWCKeyLookupPolicy(c.WCKeys.LookupPolicy); err != nil {
		return err
	}

	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	if c.Notice.BusyAfter < 0 || c.Prompt.Timeout < 0 {
		return errors.New("durations cannot be negative")
	}

	return nil
}

// configDirs returns the directories searched for a config file.
func configDirs() []string {
	dirs := []string{base.SystemConfigDir}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(userConfigDir, base.AppName))
	}

	return dirs
}

// findConfigFile returns the first config file found in dirs or an empty
// string.
func findConfigFile(dirs []string) string {
	for _, dir := range dirs {
		for _, file := range base.ConfigFileNames {
			configFile := filepath.Join(dir, file)
			if _, err := os.Stat(configFile); err == nil {
				return configFile
			}
		}
	}

	return ""
}

// readConfig reads the config file at path or the first one found in dirs.
// Without any config file the defaults are returned.
func readConfig(path string, dirs []string) (*Config, string, error) {
	if path == "" {
		path = findConfigFile(dirs)
	}

	if path == "" {
		config := defaultConfig()

		return &config, "", nil
	}

	config, err := common.MakeConfig[Config](path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// An empty file never calls UnmarshalYAML
	if config.Storage.Path == "" {
		*config = defaultConfig()
	}

	return config, path, nil
}
