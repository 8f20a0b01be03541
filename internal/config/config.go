package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/motortwin/internal/dashboard"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/metrics"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/relay"
	"codeberg.org/mutker/motortwin/internal/transport"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel  = LogLevelInfo
	DefaultEnvPrefix = "MOTORTWIN"
	configName       = "motortwin"
	configDir        = "/etc"
)

type BrokerConfig struct {
	URL             string        `mapstructure:"url"`
	ClientID        string        `mapstructure:"client_id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Topic           string        `mapstructure:"topic"`
	QoS             int           `mapstructure:"qos"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	Embedded        bool          `mapstructure:"embedded"`
	EmbeddedAddress string        `mapstructure:"embedded_address"`
}

type PipelineConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ScopeSize        int           `mapstructure:"scope_size"`
	SampleInterval   time.Duration `mapstructure:"sample_interval"`
	AdaptiveSampling bool          `mapstructure:"adaptive_sampling"`
	StreamTimeout    time.Duration `mapstructure:"stream_timeout"`
}

type HTTPConfig struct {
	Address  string        `mapstructure:"address"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DBPath          string        `mapstructure:"db_path"`
	BackupDir       string        `mapstructure:"backup_dir"`
	BackupOnMigrate bool          `mapstructure:"backup_on_migrate"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
}

type RelayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Stream    string `mapstructure:"stream"`
	MaxLen    int64  `mapstructure:"max_len"`
	QueueSize int    `mapstructure:"queue_size"`
}

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Relay    RelayConfig    `mapstructure:"relay"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":         "log_level",
	"broker":            "broker.url",
	"topic":             "broker.topic",
	"embedded-broker":   "broker.embedded",
	"interval":          "pipeline.interval",
	"scope-size":        "pipeline.scope_size",
	"sample-interval":   "pipeline.sample_interval",
	"adaptive-sampling": "pipeline.adaptive_sampling",
	"http-address":      "http.address",
	"metrics":           "metrics.enabled",
	"metrics-db":        "metrics.db_path",
	"relay":             "relay.enabled",
	"relay-addr":        "relay.addr",
}

func setDefaults(v *viper.Viper) {
	settings := pipeline.DefaultSettings()
	mc := metrics.DefaultConfig()
	rc := relay.DefaultConfig()

	v.SetDefault("log_level", string(DefaultLogLevel))

	v.SetDefault("broker.url", "tcp://localhost:1883")
	v.SetDefault("broker.client_id", "")
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.topic", "motors/+/telemetry")
	v.SetDefault("broker.qos", 0)
	v.SetDefault("broker.connect_timeout", transport.DefaultConnectTimeout)
	v.SetDefault("broker.retry_interval", transport.DefaultRetryInterval)
	v.SetDefault("broker.embedded", false)
	v.SetDefault("broker.embedded_address", ":1883")

	v.SetDefault("pipeline.interval", settings.UpdateInterval)
	v.SetDefault("pipeline.scope_size", settings.ScopeSize)
	v.SetDefault("pipeline.sample_interval", settings.SampleInterval)
	v.SetDefault("pipeline.adaptive_sampling", settings.AdaptiveSampling)
	v.SetDefault("pipeline.stream_timeout", settings.StreamTimeout)

	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.debounce", dashboard.DefaultDebounce)

	v.SetDefault("metrics.enabled", mc.Enabled)
	v.SetDefault("metrics.db_path", mc.DBPath)
	v.SetDefault("metrics.backup_dir", mc.BackupDir)
	v.SetDefault("metrics.backup_on_migrate", mc.BackupOnMigrate)
	v.SetDefault("metrics.batch_size", mc.BatchSize)
	v.SetDefault("metrics.batch_timeout", mc.BatchTimeout)

	v.SetDefault("relay.enabled", rc.Enabled)
	v.SetDefault("relay.addr", rc.Addr)
	v.SetDefault("relay.password", rc.Password)
	v.SetDefault("relay.db", rc.DB)
	v.SetDefault("relay.stream", rc.Stream)
	v.SetDefault("relay.max_len", rc.MaxLen)
	v.SetDefault("relay.queue_size", rc.QueueSize)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.String("broker", "", "MQTT broker URL")
	fs.String("topic", "", "MQTT topic filter")
	fs.Bool("embedded-broker", false, "Run an in-process MQTT broker")
	fs.Duration("interval", 0, "Update interval")
	fs.Int("scope-size", 0, "Number of frames in each published snapshot")
	fs.Duration("sample-interval", 0, "Expected sensor interval")
	fs.Bool("adaptive-sampling", true, "Size the history from the observed sensor interval")
	fs.String("http-address", "", "Dashboard listen address")
	fs.Bool("metrics", false, "Record ticks to sqlite")
	fs.String("metrics-db", "", "Path to the tick database")
	fs.Bool("relay", false, "Relay ticks to a Redis stream")
	fs.String("relay-addr", "", "Redis address")
	return fs
}

// Load reads defaults, the config file, the environment and flags, in
// increasing order of precedence, and validates the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, o options, fs *pflag.FlagSet) error {
	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Broker.Topic == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "broker topic must not be empty")
	}
	if c.Broker.URL == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "broker url must not be empty")
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "broker.qos",
			Value: c.Broker.QoS,
		})
	}

	if err := c.PipelineSettings().Validate(); err != nil {
		return err
	}
	if err := c.MetricsOptions().Validate(); err != nil {
		return err
	}
	if c.Relay.Enabled && c.Relay.Addr == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "relay address must not be empty")
	}

	return nil
}

func (c *Config) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		UpdateInterval:   c.Pipeline.Interval,
		ScopeSize:        c.Pipeline.ScopeSize,
		SampleInterval:   c.Pipeline.SampleInterval,
		AdaptiveSampling: c.Pipeline.AdaptiveSampling,
		StreamTimeout:    c.Pipeline.StreamTimeout,
	}
}

func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Broker:         c.Broker.URL,
		ClientID:       c.Broker.ClientID,
		Username:       c.Broker.Username,
		Password:       c.Broker.Password,
		Topic:          c.Broker.Topic,
		QoS:            byte(c.Broker.QoS),
		ConnectTimeout: c.Broker.ConnectTimeout,
		RetryInterval:  c.Broker.RetryInterval,
	}
}

func (c *Config) DashboardOptions() dashboard.Options {
	return dashboard.Options{
		Address:  c.HTTP.Address,
		Debounce: c.HTTP.Debounce,
	}
}

func (c *Config) MetricsOptions() metrics.Config {
	return metrics.Config{
		Enabled:         c.Metrics.Enabled,
		DBPath:          c.Metrics.DBPath,
		BackupDir:       c.Metrics.BackupDir,
		BackupOnMigrate: c.Metrics.BackupOnMigrate,
		BatchSize:       c.Metrics.BatchSize,
		BatchTimeout:    c.Metrics.BatchTimeout,
	}
}

func (c *Config) RelayOptions() relay.Config {
	return relay.Config{
		Enabled:   c.Relay.Enabled,
		Addr:      c.Relay.Addr,
		Password:  c.Relay.Password,
		DB:        c.Relay.DB,
		Stream:    c.Relay.Stream,
		MaxLen:    c.Relay.MaxLen,
		QueueSize: c.Relay.QueueSize,
	}
}
