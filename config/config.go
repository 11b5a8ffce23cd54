// Package config implements the YAML config file parser
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/taoscan/neuronsnap/catalog"
	"github.com/taoscan/neuronsnap/config/logger"
)

// DefaultConcurrency is the default number of node connections per snapshot
const DefaultConcurrency = 32

// DefaultPageSize is the number of keys requested per storage page.
// This matches the page size of the legacy RPC backend in other clients.
const DefaultPageSize = 1000

// DefaultDialTimeout limits how long establishing a single node connection
// may take.
const DefaultDialTimeout = 30 * time.Second

// Config is the config root object
type Config struct {
	Node              Node          `yaml:"node"`
	Concurrency       int           `yaml:"concurrency"`
	Maps              []string      `yaml:"maps"` // Maps to fetch besides keys, all if empty
	StrictMemberCount bool          `yaml:"strict_member_count"`
	Export            Export        `yaml:"export"`
	HTTP              HTTP          `yaml:"http"`
	Log               logger.Config `yaml:"log"`

	// Set to current version by main
	Version string `yaml:"-"`
}

// Node configures the connection to the chain node
type Node struct {
	Backend     string        `yaml:"backend"` // Storage backend type, like "rpc"
	URL         string        `yaml:"url"`     // ws://, wss://, http:// or https:// node URL
	PageSize    int           `yaml:"page_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Export configures where snapshots are exported to
type Export struct {
	Type    string                 `yaml:"type"` // simpleblob backend type, disabled if empty
	Options map[string]interface{} `yaml:"options,omitempty"`
	Prefix  string                 `yaml:"prefix"`

	RetryCount    int           `yaml:"retry_count"` // Store attempts per export
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// HTTP configures the HTTP server with Prometheus metrics and status page
type HTTP struct {
	Address string `yaml:"address"` // Address like ":8500"
}

// Check validates a Config instance
func (c Config) Check() error {
	if err := c.Log.Check(); err != nil {
		return err
	}
	if c.Node.Backend == "" {
		return fmt.Errorf("node.backend: no backend configured")
	}
	if c.Node.URL != "" {
		u, err := url.Parse(c.Node.URL)
		if err != nil {
			return fmt.Errorf("node.url: %v", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("node.url: scheme and host required: %q", c.Node.URL)
		}
	}
	if c.Node.PageSize < 1 {
		return fmt.Errorf("node.page_size: must be at least 1")
	}
	if c.Node.DialTimeout < 0 {
		return fmt.Errorf("node.dial_timeout: must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency: must be at least 1")
	}
	known := catalog.Names()
	for _, name := range c.Maps {
		if !lo.Contains(known, name) {
			return fmt.Errorf("maps: unknown map %q, must be one of: %s",
				name, strings.Join(known, ", "))
		}
	}
	if c.Export.Type != "" {
		if c.Export.Prefix == "" || strings.Contains(c.Export.Prefix, "__") {
			return fmt.Errorf("export.prefix: must be set and must not contain '__'")
		}
		if c.Export.RetryCount < 1 {
			return fmt.Errorf("export.retry_count: must be at least 1")
		}
	}
	if c.HTTP.Address != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Address); err != nil {
			return fmt.Errorf("http.address: %v", err)
		}
	}
	return nil
}

// String returns the config as a YAML string with passwords masked.
func (c Config) String() string {
	if u, err := url.Parse(c.Node.URL); err == nil && u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
		c.Node.URL = u.String()
	}
	y, err := yaml.Marshal(c)
	if err != nil {
		logrus.Panicf("YAML marshal of config failed: %v", err) // Should never happen
	}
	return string(y)
}

// LoadYAML loads config from YAML. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAML(yamlContents []byte, expandEnv bool) error {
	if expandEnv {
		yamlContents = []byte(os.ExpandEnv(string(yamlContents)))
	}
	return yaml.UnmarshalStrict(yamlContents, c)
}

// LoadYAMLFile loads config from a YAML file. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAMLFile(fpath string, expandEnv bool) error {
	contents, err := os.ReadFile(fpath)
	if err != nil {
		return errors.Wrap(err, "open yaml file")
	}
	return c.LoadYAML(contents, expandEnv)
}

// Default returns a Config with default settings
func Default() Config {
	return Config{
		Node: Node{
			Backend:     "rpc",
			PageSize:    DefaultPageSize,
			DialTimeout: DefaultDialTimeout,
		},
		Concurrency:       DefaultConcurrency,
		StrictMemberCount: true,
		Export: Export{
			Prefix:        "neurons",
			RetryCount:    5,
			RetryInterval: 5 * time.Second,
		},
		Log: logger.DefaultConfig,
	}
}
