// Package config loads phonedetect settings from defaults, an optional YAML
// file, PHONEDETECT_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Brownie44l1/phonedetect/internal/report"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PHONEDETECT"

type Config struct {
	Model     ModelConfig     `mapstructure:"model"`
	Detection DetectionConfig `mapstructure:"detection"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Images    []string        `mapstructure:"images"`
}

type ModelConfig struct {
	Path              string `mapstructure:"path"`
	MetadataPath      string `mapstructure:"metadata_path"`
	LabelsPath        string `mapstructure:"labels_path"`
	SharedLibraryPath string `mapstructure:"shared_library_path"`
	WarmUp            bool   `mapstructure:"warm_up"`
}

type DetectionConfig struct {
	Threshold float64  `mapstructure:"threshold"`
	TopK      int      `mapstructure:"top_k"`
	Keywords  []string `mapstructure:"keywords"`
}

type OutputConfig struct {
	Path     string `mapstructure:"path"`
	Format   string `mapstructure:"format"`
	Locale   string `mapstructure:"locale"`
	Progress bool   `mapstructure:"progress"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"model":     "model.path",
	"metadata":  "model.metadata_path",
	"labels":    "model.labels_path",
	"ort-lib":   "model.shared_library_path",
	"warm-up":   "model.warm_up",
	"threshold": "detection.threshold",
	"top-k":     "detection.top_k",
	"keyword":   "detection.keywords",
	"output":    "output.path",
	"format":    "output.format",
	"locale":    "output.locale",
	"progress":  "output.progress",
	"port":      "server.port",
	"log-level": "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.path", "models/mobilenet_v2.onnx")
	v.SetDefault("model.metadata_path", "models/model_metadata.json")
	v.SetDefault("model.labels_path", "")
	v.SetDefault("model.shared_library_path", "")
	v.SetDefault("model.warm_up", true)

	v.SetDefault("detection.threshold", 0.3)
	v.SetDefault("detection.top_k", 5)
	v.SetDefault("detection.keywords", []string{"cellphone", "mobile phone", "smartphone", "phone"})

	v.SetDefault("output.path", "detection_results.txt")
	v.SetDefault("output.format", "text")
	v.SetDefault("output.locale", "en")
	v.SetDefault("output.progress", false)

	v.SetDefault("server.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("images", []string{"pomodoro-detector/phone1.jpg", "pomodoro-detector/phone2.jpeg"})
}

// Load builds a Config. configFile may be empty, in which case
// phonedetect.yaml is looked up in the working directory and its absence is
// not an error. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("phonedetect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise surface as odd runtime
// behavior.
func (c *Config) Validate() error {
	var errs []error

	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Model.MetadataPath == "" {
		errs = append(errs, errors.New("model.metadata_path is required"))
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold %v outside [0, 1]", c.Detection.Threshold))
	}
	if c.Detection.TopK <= 0 {
		errs = append(errs, fmt.Errorf("detection.top_k must be positive, got %d", c.Detection.TopK))
	}
	if len(c.Detection.Keywords) == 0 {
		errs = append(errs, errors.New("detection.keywords must not be empty"))
	}
	for i, kw := range c.Detection.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Errorf("detection.keywords[%d] is blank", i))
		}
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if locale := strings.ToLower(c.Output.Locale); !slices.Contains(report.Locales(), locale) {
		errs = append(errs, fmt.Errorf("output.locale %q not one of %v", c.Output.Locale, report.Locales()))
	}
	if format := strings.ToLower(c.Output.Format); format != "" && !slices.Contains(report.Formats(), format) {
		errs = append(errs, fmt.Errorf("output.format %q not one of %v", c.Output.Format, report.Formats()))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	return errors.Join(errs...)
}
