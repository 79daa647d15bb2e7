// Package config loads importer settings from a YAML configuration file.
//
// The file carries a single "usts" section with the InfluxDB connection
// parameters and run options:
//
//	usts:
//	  url: http://localhost:8086
//	  api_token: my-token
//	  org: my-org
//	  bucket: usts
//	  timeout: 10m
//	  truncate: true
//	  zip_timeout: 5s
//	  zip_cache_size: 1000
//	  metrics_addr: ""
//	  log_level: info
//	  log_format: text
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all importer settings, populated from the configuration file.
type Config struct {
	URL      string
	APIToken string
	Org      string
	Bucket   string

	// Timeout bounds each store call. Generous by default: a full reload
	// flushes tens of thousands of points per batch.
	Timeout  time.Duration
	Truncate bool

	ZipTimeout   time.Duration
	ZipCacheSize int

	// MetricsAddr, when non-empty, starts a debug listener serving
	// /metrics and /healthz.
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

type configFile struct {
	USTs section `yaml:"usts"`
}

type section struct {
	URL          string `yaml:"url"`
	APIToken     string `yaml:"api_token"`
	Org          string `yaml:"org"`
	Bucket       string `yaml:"bucket"`
	Timeout      string `yaml:"timeout"`
	Truncate     *bool  `yaml:"truncate"`
	ZipTimeout   string `yaml:"zip_timeout"`
	ZipCacheSize int    `yaml:"zip_cache_size"`
	MetricsAddr  string `yaml:"metrics_addr"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

// Load reads and validates the configuration file at path, applying defaults
// where unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	s := f.USTs

	if s.URL == "" {
		return nil, errors.New("usts.url is required")
	}
	if s.APIToken == "" {
		return nil, errors.New("usts.api_token is required")
	}
	if s.Org == "" {
		return nil, errors.New("usts.org is required")
	}
	if s.Bucket == "" {
		return nil, errors.New("usts.bucket is required")
	}

	timeout, err := parseDuration(s.Timeout, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid usts.timeout: %w", err)
	}
	zipTimeout, err := parseDuration(s.ZipTimeout, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid usts.zip_timeout: %w", err)
	}

	truncate := true
	if s.Truncate != nil {
		truncate = *s.Truncate
	}

	cacheSize := s.ZipCacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}

	logLevel := s.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := s.LogFormat
	if logFormat == "" {
		logFormat = "text"
	}

	return &Config{
		URL:          s.URL,
		APIToken:     s.APIToken,
		Org:          s.Org,
		Bucket:       s.Bucket,
		Timeout:      timeout,
		Truncate:     truncate,
		ZipTimeout:   zipTimeout,
		ZipCacheSize: cacheSize,
		MetricsAddr:  s.MetricsAddr,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
	}, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
