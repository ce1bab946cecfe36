package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/winchlab/servoctl/internal/errors"
)

const (
	DefaultPeriodUs   = 1000
	DefaultPolicy     = "fifo"
	DefaultPriority   = 1
	DefaultAffinity   = "last"
	DefaultLogLevel   = "info"
	DefaultDBPath     = "/var/lib/servoctl/telemetry.db"
	DefaultConfigFile = "/etc/servoctl.toml"
)

// Config holds the full daemon configuration. Values are resolved from
// flags, the SERVOCTL_* environment and the TOML config file, in that
// order of precedence.
type Config struct {
	PeriodUs  int    `mapstructure:"period"`
	Policy    string `mapstructure:"policy"`
	Priority  int    `mapstructure:"priority"`
	Affinity  string `mapstructure:"affinity"`
	Drives    []int  `mapstructure:"drives"`
	Geometry  string `mapstructure:"geometry"`
	MemLock   bool   `mapstructure:"memlock"`
	Telemetry bool   `mapstructure:"telemetry"`
	Database  string `mapstructure:"database"`
	LogLevel  string `mapstructure:"log_level"`
	Monitor   bool   `mapstructure:"monitor"`
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	flags := pflag.NewFlagSet("servoctl", pflag.ContinueOnError)
	flags.Int("period", DefaultPeriodUs, "Fieldbus cycle period in microseconds")
	flags.String("policy", DefaultPolicy, "Scheduling policy: normal, fifo or rr")
	flags.Int("priority", DefaultPriority, "Real-time scheduling priority")
	flags.String("affinity", DefaultAffinity, "CPU affinity: core index, list, 'all' or 'last'")
	flags.IntSlice("drives", []int{0}, "Slave positions of the drives to control")
	flags.String("geometry", "", "Path to the robot geometry file")
	flags.Bool("memlock", true, "Lock process memory before starting the control thread")
	flags.Bool("telemetry", false, "Enable cycle telemetry collection")
	flags.String("database", DefaultDBPath, "Path to the telemetry database")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.Bool("monitor", false, "Only decode drive feedback, issue no commands")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlags(flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix("SERVOCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configPath := os.Getenv("SERVOCTL_CONFIG")
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.PeriodUs <= 0 {
		return errFactory.WithData(errors.ErrInvalidPeriod, c.PeriodUs)
	}

	switch c.Policy {
	case "normal", "fifo", "rr":
	default:
		return errFactory.WithData(errors.ErrInvalidPolicy, c.Policy)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if _, err := ParseAffinity(c.Affinity); err != nil {
		return err
	}

	if len(c.Drives) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "no drive positions configured")
	}
	for _, pos := range c.Drives {
		if pos < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, pos)
		}
	}

	if c.Telemetry && c.Database == "" {
		return errFactory.New(errors.ErrInvalidDBPath)
	}

	return nil
}

// ParseAffinity resolves the affinity config string into explicit core
// indices. "all" and "last" map to the sentinels understood by the rt
// package; a comma-separated list selects an explicit set.
func ParseAffinity(s string) ([]int, error) {
	errFactory := errors.New()

	switch s {
	case "", "all":
		return []int{AffinityAllCores}, nil
	case "last":
		return []int{AffinityLastCore}, nil
	}

	parts := strings.Split(s, ",")
	cores := make([]int, 0, len(parts))
	for _, part := range parts {
		core, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || core < 0 {
			return nil, errFactory.WithData(errors.ErrInvalidAffinity, s)
		}
		cores = append(cores, core)
	}

	return cores, nil
}

// Affinity sentinels mirrored by the rt package.
const (
	AffinityAllCores = -1
	AffinityLastCore = -2
)
