package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		ID      string `yaml:"id"`
		CSVPath string `yaml:"csvPath"`
		TTL     string `yaml:"ttl"`
	} `yaml:"catalog"`
	Session struct {
		IdleTTL string `yaml:"idleTtl"`
	} `yaml:"session"`
	OpenAI struct {
		APIKey             string `yaml:"apiKey"`
		BaseURL            string `yaml:"baseUrl"`
		ChatModel          string `yaml:"chatModel"`
		TranscriptionModel string `yaml:"transcriptionModel"`
		Timeout            string `yaml:"timeout"`
	} `yaml:"openai"`
	Scoring struct {
		// FacetDomains overrides the built-in Big Five facet->domain table.
		FacetDomains map[string]string `yaml:"facetDomains"`
	} `yaml:"scoring"`
	Upload struct {
		Dir string `yaml:"dir"`
	} `yaml:"upload"`
}

// Load reads YAML config from path. OPENAI_API_KEY in the environment takes
// precedence over the file so the secret can stay out of it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	return cfg, nil
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
