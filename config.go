// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpflex

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gogama/httpflex/cache"
	"github.com/gogama/httpflex/retry"
	"github.com/gogama/httpflex/transport"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTimeout is the default per-attempt transport timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxWorkers is the default concurrency of the pool
	// executor.
	DefaultMaxWorkers = 10
	// DefaultMethod is the method used when a Config names none.
	DefaultMethod = "GET"
)

// Config is the construction-time configuration of a Client.
//
// A zero field means "not set": Merge leaves the base value in place.
// Boolean settings whose zero value is meaningful are pointers, and Bool
// and Int build pointer values inline.
type Config struct {
	// BaseURL is the root against which Endpoint is resolved.
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`
	// URL is a complete URL template. When set it is used instead of
	// BaseURL and Endpoint.
	URL string `yaml:"url" json:"url,omitempty"`
	// Endpoint is the path template, which may contain {name}
	// placeholders filled from the request configuration.
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
	Method   string `yaml:"method" json:"method,omitempty"`

	// Timeout is the per-attempt transport timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	// AttemptTimeouts replace Timeout on attempts which follow a
	// timed-out attempt: the n-th timeout is followed by
	// AttemptTimeouts[n-1], the last element repeating.
	AttemptTimeouts []time.Duration `yaml:"attempt_timeouts" json:"attempt_timeouts,omitempty"`
	// Verify enables TLS certificate verification.
	Verify *bool `yaml:"verify" json:"verify,omitempty"`
	// EnableRetry enables transport-level retries.
	EnableRetry *bool `yaml:"enable_retry" json:"enable_retry,omitempty"`
	// MaxRetries overrides Retry.Total.
	MaxRetries *int                 `yaml:"max_retries" json:"max_retries,omitempty"`
	Retry      retry.Config         `yaml:"retry" json:"retry"`
	Pool       transport.PoolConfig `yaml:"pool" json:"pool"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	// MaxWorkers bounds the concurrency of the pool executor.
	MaxWorkers int `yaml:"max_workers" json:"max_workers,omitempty"`
	// Executor names the batch strategy: "pool" or "sync".
	Executor string `yaml:"executor" json:"executor,omitempty"`

	Auth *transport.AuthConfig `yaml:"auth" json:"auth,omitempty"`

	// Parser names the response parser: "json", "content", "raw",
	// "stream", "file" or "jq".
	Parser string `yaml:"parser" json:"parser,omitempty"`
	// JQ is the query of the "jq" parser.
	JQ string `yaml:"jq" json:"jq,omitempty"`
	// DownloadDir is the target directory of the "file" parser.
	DownloadDir string `yaml:"download_dir" json:"download_dir,omitempty"`

	// AllowedStatus, if not empty, installs a status code validator.
	AllowedStatus []int `yaml:"allowed_status" json:"allowed_status,omitempty"`
	// StrictStatus makes the status code validator reject responses
	// outside AllowedStatus. It defaults to true.
	StrictStatus *bool `yaml:"strict_status" json:"strict_status,omitempty"`

	// Required lists request configuration keys which must be present.
	Required []string `yaml:"required" json:"required,omitempty"`
}

// CacheConfig configures the cache layer of a CacheClient.
type CacheConfig struct {
	// TTL is the lifetime of cached results. Zero means
	// cache.DefaultTTL and a negative value means no expiry.
	TTL time.Duration `yaml:"ttl" json:"ttl,omitempty"`
	// UserIdentifier isolates cache entries per user.
	UserIdentifier string `yaml:"user_identifier" json:"user_identifier,omitempty"`
	// UserSpecific requires UserIdentifier to be set.
	UserSpecific bool `yaml:"user_specific" json:"user_specific,omitempty"`
	// KeyPrefix is prepended to every cache key.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix,omitempty"`
	// RelevantHeaders are the client headers which take part in the
	// cache key. Empty means cache.DefaultRelevantHeaders.
	RelevantHeaders []string `yaml:"relevant_headers" json:"relevant_headers,omitempty"`
	// ShouldCache is an expr expression deciding whether a result is
	// stored. Empty means every result is stored.
	ShouldCache string `yaml:"should_cache" json:"should_cache,omitempty"`
	// Backend selects and configures the cache backend.
	Backend cache.Config `yaml:"backend" json:"backend"`
}

// ConfigFile is the layout of a YAML client definition.
type ConfigFile struct {
	Config `yaml:",inline"`
	Cache  *CacheConfig `yaml:"cache"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Method:       DefaultMethod,
		Timeout:      DefaultTimeout,
		Verify:       Bool(true),
		EnableRetry:  Bool(false),
		Retry:        retry.DefaultConfig(),
		Pool:         transport.DefaultPoolConfig(),
		MaxWorkers:   DefaultMaxWorkers,
		StrictStatus: Bool(true),
	}
}

// Merge returns base with every non-zero field of override layered on
// top. Headers are merged key by key. A non-nil MaxRetries also sets
// Retry.Total.
func Merge(base, override Config) Config {
	out := base
	str := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	str(&out.BaseURL, override.BaseURL)
	str(&out.URL, override.URL)
	str(&out.Endpoint, override.Endpoint)
	str(&out.Method, override.Method)
	str(&out.Executor, override.Executor)
	str(&out.Parser, override.Parser)
	str(&out.JQ, override.JQ)
	str(&out.DownloadDir, override.DownloadDir)
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.Verify != nil {
		out.Verify = Bool(*override.Verify)
	}
	if override.EnableRetry != nil {
		out.EnableRetry = Bool(*override.EnableRetry)
	}
	if override.StrictStatus != nil {
		out.StrictStatus = Bool(*override.StrictStatus)
	}
	out.Retry = mergeRetry(base.Retry, override.Retry)
	if override.MaxRetries != nil {
		out.MaxRetries = Int(*override.MaxRetries)
	}
	if out.MaxRetries != nil {
		out.Retry.Total = *out.MaxRetries
	}
	out.Pool = mergePool(base.Pool, override.Pool)
	if len(base.Headers)+len(override.Headers) > 0 {
		out.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			out.Headers[k] = v
		}
		for k, v := range override.Headers {
			out.Headers[k] = v
		}
	}
	if override.MaxWorkers != 0 {
		out.MaxWorkers = override.MaxWorkers
	}
	if override.Auth != nil {
		a := *override.Auth
		out.Auth = &a
	}
	if len(override.AllowedStatus) > 0 {
		out.AllowedStatus = append([]int(nil), override.AllowedStatus...)
	}
	if len(override.AttemptTimeouts) > 0 {
		out.AttemptTimeouts = append([]time.Duration(nil), override.AttemptTimeouts...)
	}
	if len(override.Required) > 0 {
		out.Required = append([]string(nil), override.Required...)
	}
	return out
}

func mergeRetry(base, override retry.Config) retry.Config {
	out := base
	if override.Total != 0 {
		out.Total = override.Total
	}
	if override.BackoffFactor != 0 {
		out.BackoffFactor = override.BackoffFactor
	}
	if len(override.StatusForcelist) > 0 {
		out.StatusForcelist = append([]int(nil), override.StatusForcelist...)
	}
	if len(override.AllowedMethods) > 0 {
		out.AllowedMethods = append([]string(nil), override.AllowedMethods...)
	}
	if override.RaiseOnStatus {
		out.RaiseOnStatus = true
	}
	return out
}

func mergePool(base, override transport.PoolConfig) transport.PoolConfig {
	out := base
	if override.Connections != 0 {
		out.Connections = override.Connections
	}
	if override.MaxSize != 0 {
		out.MaxSize = override.MaxSize
	}
	if override.HTTP2 {
		out.HTTP2 = true
	}
	if override.RateLimit != 0 {
		out.RateLimit = override.RateLimit
	}
	if override.Burst != 0 {
		out.Burst = override.Burst
	}
	return out
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" && strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("either base_url or url must be set")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must not be negative, got %d", c.MaxWorkers)
	}
	return nil
}

// LoadConfig reads a YAML client definition from path.
func LoadConfig(path string) (*ConfigFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httpflex: failed to read config: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes a YAML client definition.
func ParseConfig(b []byte) (*ConfigFile, error) {
	var f ConfigFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("httpflex: failed to parse config: %w", err)
	}
	return &f, nil
}
