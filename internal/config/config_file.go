package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/and161185/elasticsearch-exporter/model"
)

// fileConfig mirrors the YAML config file. Pointers distinguish "absent"
// from zero values. Durations are Go duration strings ("5s").
type fileConfig struct {
	ListenAddress    *string                  `yaml:"listen_address"`
	ElasticsearchURL *string                  `yaml:"elasticsearch_url"`
	Username         *string                  `yaml:"username"`
	Password         *string                  `yaml:"password"`
	PollInterval     *string                  `yaml:"poll_interval"`
	MaxJitter        *string                  `yaml:"max_jitter"`
	Timeout          *string                  `yaml:"timeout"`
	Subsystems       []string                 `yaml:"subsystems"`
	LogLevel         *string                  `yaml:"log_level"`
	ConstLabels      map[string]string        `yaml:"const_labels"`
	Subsystem        map[string]subsystemFile `yaml:"subsystem"`
}

type subsystemFile struct {
	PollInterval  string            `yaml:"poll_interval"`
	SkipLabels    []string          `yaml:"skip_labels"`
	SkipMetrics   []string          `yaml:"skip_metrics"`
	IncludeLabels []string          `yaml:"include_labels"`
	ConstLabels   map[string]string `yaml:"const_labels"`
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

func parseOptionalDuration(name string, s *string) (time.Duration, bool, error) {
	if s == nil || *s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return d, true, nil
}

func (sf subsystemFile) toModel(name string) (model.SubsystemConfig, error) {
	sc := model.SubsystemConfig{
		SkipLabels:    model.Set(sf.SkipLabels...),
		SkipMetrics:   model.Set(sf.SkipMetrics...),
		IncludeLabels: model.Set(sf.IncludeLabels...),
		ConstLabels:   sf.ConstLabels,
	}
	if sf.PollInterval != "" {
		d, err := time.ParseDuration(sf.PollInterval)
		if err != nil {
			return sc, fmt.Errorf("subsystem %s poll_interval: %w", name, err)
		}
		sc.PollInterval = d
	}
	return sc, nil
}
