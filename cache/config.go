package cache

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from configuration. Integers are
// milliseconds; strings use ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseDuration(node.Value)
	if err != nil {
		return configErrorf("invalid duration %q at line %d: %v", node.Value, node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts any scalar value and keeps its literal text.
func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return configErrorf("properties must be a mapping, line %d", node.Line)
	}
	props := make(Properties, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return configErrorf("property %q must be a scalar, line %d", k.Value, v.Line)
		}
		props[k.Value] = v.Value
	}
	*p = props
	return nil
}

// Config describes one cache chain.
//
//	id: users
//	implementation: perpetual
//	decorators: [lru]
//	size: 512
//	clearInterval: 30m
//	readWrite: true
//	blocking: true
//	properties:
//	  timeout: 250
type Config struct {
	ID             string     `yaml:"id"`
	Implementation string     `yaml:"implementation,omitempty"`
	Decorators     []string   `yaml:"decorators,omitempty"`
	Size           *int       `yaml:"size,omitempty"`
	ClearInterval  *Duration  `yaml:"clearInterval,omitempty"`
	ReadWrite      bool       `yaml:"readWrite,omitempty"`
	Blocking       bool       `yaml:"blocking,omitempty"`
	Properties     Properties `yaml:"properties,omitempty"`
}

// ParseConfig decodes a YAML document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsing cache config"), ErrConfiguration)
	}
	if cfg.ID == "" {
		return nil, configErrorf("cache config has no id")
	}
	return &cfg, nil
}

// LoadConfig reads and decodes a YAML file.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cache config %s", path)
	}
	return ParseConfig(buf)
}

// Builder resolves the configured names against r and returns a Builder.
// A nil registry uses NewRegistry.
func (c *Config) Builder(r *Registry, opts ...Option) (*Builder, error) {
	if r == nil {
		r = NewRegistry()
	}
	b := NewBuilder(c.ID).Options(opts...)
	if c.Implementation != "" {
		f, err := r.Implementation(c.Implementation)
		if err != nil {
			return nil, err
		}
		b.Implementation(f)
	}
	for _, name := range c.Decorators {
		d, err := r.Decorator(name)
		if err != nil {
			return nil, err
		}
		b.AddDecorator(d)
	}
	if c.Size != nil {
		b.Size(*c.Size)
	}
	if c.ClearInterval != nil {
		b.ClearInterval(time.Duration(*c.ClearInterval))
	}
	return b.ReadWrite(c.ReadWrite).Blocking(c.Blocking).Properties(c.Properties), nil
}

// Build is shorthand for Builder followed by Build.
func (c *Config) Build(r *Registry, opts ...Option) (Cache, error) {
	b, err := c.Builder(r, opts...)
	if err != nil {
		return nil, err
	}
	return b.Build()
}
