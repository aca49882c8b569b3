// Package config provides the exporter configuration and its logger.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/elasticsearch-exporter/model"
)

// Defaults used when neither flags, the config file nor the environment set a value.
const (
	DefaultListenAddr   = "0.0.0.0:9222"
	DefaultElasticURL   = "http://localhost:9200"
	DefaultPollInterval = 5 * time.Second
	DefaultMaxJitter    = time.Second
	DefaultTimeout      = 10 * time.Second
	DefaultLogLevel     = "info"
)

// ExporterConfig holds the configuration settings for the exporter.
type ExporterConfig struct {
	ListenAddr   string        // HTTP listen address for /metrics
	ElasticURL   string        // Base URL of the Elasticsearch cluster
	Username     string        // Basic auth user, empty disables auth
	Password     string        // Basic auth password
	PollInterval time.Duration // Default poll interval for every subsystem
	MaxJitter    time.Duration // Upper bound of the random start delay
	Timeout      time.Duration // Per-request timeout
	Subsystems   []string      // Enabled subsystems, empty means all
	LogLevel     string
	ConfigPath   string
	ConstLabels  map[string]string // Added to every series of every subsystem

	Logger *zap.SugaredLogger

	overrides map[string]model.SubsystemConfig
	warnings  []string
}

// NewExporterConfig parses the process flags and environment.
func NewExporterConfig() (*ExporterConfig, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse builds the config from the given flag set and arguments.
// Priority: environment > flags > config file > defaults.
func Parse(fs *flag.FlagSet, args []string) (*ExporterConfig, error) {
	// 0) defaults
	cfg := &ExporterConfig{
		ListenAddr:   DefaultListenAddr,
		ElasticURL:   DefaultElasticURL,
		PollInterval: DefaultPollInterval,
		MaxJitter:    DefaultMaxJitter,
		Timeout:      DefaultTimeout,
		LogLevel:     DefaultLogLevel,
		ConstLabels:  map[string]string{},
		overrides:    map[string]model.SubsystemConfig{},
	}

	// 1) flags
	var fAddr, fURL, fLevel, fConf strFlag
	var fPoll, fJitter, fTO durationFlag
	var fSubs listFlag

	fs.Var(&fAddr, "a", "listen address for /metrics (default "+DefaultListenAddr+")")
	fs.Var(&fURL, "e", "Elasticsearch URL (default "+DefaultElasticURL+")")
	fs.Var(&fPoll, "p", "default poll interval (default 5s)")
	fs.Var(&fJitter, "j", "max random start delay per subsystem (default 1s)")
	fs.Var(&fTO, "t", "request timeout (default 10s)")
	fs.Var(&fSubs, "s", "comma-separated subsystems to poll (default all)")
	fs.Var(&fLevel, "log-level", "log level: debug, info, warn, error")
	fs.Var(&fConf, "c", "Path to YAML config file")
	fs.Var(&fConf, "config", "Path to YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fAddr.set {
		cfg.ListenAddr = fAddr.v
	}
	if fURL.set {
		cfg.ElasticURL = fURL.v
	}
	if fPoll.set {
		cfg.PollInterval = fPoll.v
	}
	if fJitter.set {
		cfg.MaxJitter = fJitter.v
	}
	if fTO.set {
		cfg.Timeout = fTO.v
	}
	if fSubs.set {
		cfg.Subsystems = fSubs.v
	}
	if fLevel.set {
		cfg.LogLevel = fLevel.v
	}

	// 2) config file (lowest priority)
	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}
	cfg.ConfigPath = fConf.v
	if cfg.ConfigPath != "" {
		fc, err := loadFile(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		if err := cfg.applyFile(fc, fileGuard{
			addr: fAddr.set, url: fURL.set, poll: fPoll.set, jitter: fJitter.set,
			timeout: fTO.set, subsystems: fSubs.set, level: fLevel.set,
		}); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfg.ConfigPath, err)
		}
	}

	// 3) environment
	readEnvironment(cfg)

	cfg.ElasticURL = normalizeURL(cfg.ElasticURL)

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	for _, w := range cfg.warnings {
		cfg.Logger.Warn(w)
	}
	cfg.warnings = nil

	return cfg, nil
}

// fileGuard records which settings came from flags and must not be
// overwritten by the config file.
type fileGuard struct {
	addr, url, poll, jitter, timeout, subsystems, level bool
}

func (c *ExporterConfig) applyFile(fc *fileConfig, g fileGuard) error {
	if fc.ListenAddress != nil && !g.addr {
		c.ListenAddr = *fc.ListenAddress
	}
	if fc.ElasticsearchURL != nil && !g.url {
		c.ElasticURL = *fc.ElasticsearchURL
	}
	if fc.Username != nil {
		c.Username = *fc.Username
	}
	if fc.Password != nil {
		c.Password = *fc.Password
	}
	if d, ok, err := parseOptionalDuration("poll_interval", fc.PollInterval); err != nil {
		return err
	} else if ok && !g.poll {
		c.PollInterval = d
	}
	if d, ok, err := parseOptionalDuration("max_jitter", fc.MaxJitter); err != nil {
		return err
	} else if ok && !g.jitter {
		c.MaxJitter = d
	}
	if d, ok, err := parseOptionalDuration("timeout", fc.Timeout); err != nil {
		return err
	} else if ok && !g.timeout {
		c.Timeout = d
	}
	if len(fc.Subsystems) > 0 && !g.subsystems {
		c.Subsystems = fc.Subsystems
	}
	if fc.LogLevel != nil && !g.level {
		c.LogLevel = *fc.LogLevel
	}
	for k, v := range fc.ConstLabels {
		c.ConstLabels[k] = v
	}
	for name, sf := range fc.Subsystem {
		sc, err := sf.toModel(name)
		if err != nil {
			return err
		}
		c.overrides[name] = sc
	}
	return nil
}

func readEnvironment(cfg *ExporterConfig) {
	if addr := os.Getenv("LISTEN_ADDRESS"); addr != "" {
		cfg.ListenAddr = addr
	}
	if u := os.Getenv("ELASTICSEARCH_URL"); u != "" {
		cfg.ElasticURL = u
	}
	if user := os.Getenv("ELASTICSEARCH_USERNAME"); user != "" {
		cfg.Username = user
	}
	if pass := os.Getenv("ELASTICSEARCH_PASSWORD"); pass != "" {
		cfg.Password = pass
	}

	cfg.envDuration("POLL_INTERVAL", &cfg.PollInterval)
	cfg.envDuration("MAX_JITTER", &cfg.MaxJitter)
	cfg.envDuration("TIMEOUT", &cfg.Timeout)

	if subs := os.Getenv("SUBSYSTEMS"); subs != "" {
		cfg.Subsystems = splitList(subs)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
}

// envDuration keeps the current value when the variable is malformed.
func (c *ExporterConfig) envDuration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("invalid %s env var: %v", name, err))
		return
	}
	*dst = d
}

func normalizeURL(u string) string {
	u = strings.TrimRight(u, "/")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return u
}

// NewLogger builds a production JSON logger at the given level.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	logCfg.OutputPaths = []string{"stdout"}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Subsystem returns the settings of one subsystem: its own section of the
// config file merged over the global const labels.
func (c *ExporterConfig) Subsystem(name string) model.SubsystemConfig {
	sc := c.overrides[name]

	labels := make(map[string]string, len(c.ConstLabels)+len(sc.ConstLabels))
	for k, v := range c.ConstLabels {
		labels[k] = v
	}
	for k, v := range sc.ConstLabels {
		labels[k] = v
	}
	sc.ConstLabels = labels
	return sc
}

// Enabled reports whether the subsystem should be polled.
func (c *ExporterConfig) Enabled(name string) bool {
	if len(c.Subsystems) == 0 {
		return true
	}
	for _, s := range c.Subsystems {
		if s == name {
			return true
		}
	}
	return false
}
