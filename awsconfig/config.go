// Package awsconfig resolves the AWS settings shared by every plugin client
// (region, profile and an optional endpoint override for local emulators
// such as LocalStack) and turns them into an [aws.Config].
//
// Settings are layered: a TOML file, then environment variables, then
// explicit overrides supplied by the caller (typically CLI flags). The
// result is resolved once at startup and passed to the plugin
// constructors; no client reads the environment on its own.
package awsconfig

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// EnvEndpoint names the environment variable holding the endpoint
	// override, e.g. http://localhost:4566.
	EnvEndpoint = "LOCAL_STACK_ENDPOINT"

	// EnvRegion names the environment variable holding the AWS region.
	EnvRegion = "AWS_REGION"

	// EnvProfile names the environment variable holding the shared config
	// profile.
	EnvProfile = "AWS_PROFILE"
)

// Config is the resolved AWS client configuration.
type Config struct {
	EndpointOverride string `toml:"endpoint_override"`
	Region           string `toml:"region"`
	Profile          string `toml:"profile"`
}

// Validate checks that the endpoint override, when set, is an absolute URL
// and is accompanied by a region. The SDK cannot sign requests against a
// custom endpoint without one.
func (c Config) Validate() error {
	if c.EndpointOverride == "" {
		return nil
	}

	u, err := url.Parse(c.EndpointOverride)
	if err != nil {
		return fmt.Errorf("invalid endpoint override %q: %w", c.EndpointOverride, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint override %q must be an absolute URL", c.EndpointOverride)
	}

	if c.Region == "" {
		return errors.New("a region is required when the endpoint override is set")
	}

	return nil
}

// Merge returns c with every non-empty field of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.EndpointOverride != "" {
		c.EndpointOverride = other.EndpointOverride
	}

	if other.Region != "" {
		c.Region = other.Region
	}

	if other.Profile != "" {
		c.Profile = other.Profile
	}

	return c
}

// FromEnv reads the configuration from the process environment.
//
// The endpoint override is only honoured when a region is also present,
// so a stray LOCAL_STACK_ENDPOINT on its own never redirects traffic.
func FromEnv() Config {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) Config {
	var c Config

	region, _ := lookup(EnvRegion)
	c.Region = region

	if endpoint, ok := lookup(EnvEndpoint); ok && region != "" {
		c.EndpointOverride = endpoint
	}

	c.Profile, _ = lookup(EnvProfile)

	return c
}

// LoadFile parses a TOML configuration file.
func LoadFile(path string) (Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	if err := toml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return c, nil
}

// DefaultFilePath returns ~/.queueglue/config.toml, or an empty string if
// the home directory cannot be determined.
func DefaultFilePath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".queueglue", "config.toml")
	}

	return ""
}

// Resolve layers the file at path (skipped when path is empty or the file
// does not exist), the environment and overrides, in that order, and
// validates the result.
func Resolve(path string, overrides Config) (Config, error) {
	var c Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fc, err := LoadFile(path)
			if err != nil {
				return Config{}, err
			}

			c = c.Merge(fc)
		}
	}

	c = c.Merge(FromEnv()).Merge(overrides)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Load builds an [aws.Config] from c using the SDK's default credential
// chain. When an endpoint override is set it becomes the base endpoint of
// every service client built from the returned config.
func Load(ctx context.Context, c Config) (aws.Config, error) {
	if err := c.Validate(); err != nil {
		return aws.Config{}, err
	}

	var loadOpts []func(*config.LoadOptions) error

	if c.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(c.Region))
	}

	if c.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(c.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.EndpointOverride != "" {
		awsCfg.BaseEndpoint = aws.String(c.EndpointOverride)
	}

	return awsCfg, nil
}
