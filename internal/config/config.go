package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intelogroup/usmle-trivia-sub009/internal/app"
	"github.com/intelogroup/usmle-trivia-sub009/internal/scoring"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		SessionTTL string `yaml:"sessionTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		CacheTTL string `yaml:"cacheTtl"`
	} `yaml:"questions"`
	Scoring struct {
		Points scoring.PointTable `yaml:"points"`
	} `yaml:"scoring"`
	Profile app.ProfileDefaults `yaml:"profile"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PointTable returns the configured scoring weights, falling back to the
// canonical 10/15/20 table when the section is absent.
func (c Config) PointTable() scoring.PointTable {
	t := c.Scoring.Points
	if t.Easy == 0 && t.Medium == 0 && t.Hard == 0 {
		return scoring.DefaultPointTable()
	}
	return t
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
