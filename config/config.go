package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const (
	// DefaultPollInterval is the minimum time between two checkpoint iterations of a manager
	DefaultPollInterval = 15 * time.Second

	// DefaultMaxCatchUpRounds bounds the submissions a manager issues before polling again
	DefaultMaxCatchUpRounds uint64 = 50

	// DefaultGatewayAddr is the address the gateway actor is deployed at in FVM subnets
	DefaultGatewayAddr = "f064"

	DefaultLogLevel = "INFO"
)

var errNoSubnets = errors.New("no subnets configured")

// Config defines the checkpointer configuration
type Config struct {
	LogLevel         string                   `json:"log_level" yaml:"log_level" hcl:"log_level"`
	LogFilePath      string                   `json:"log_to" yaml:"log_to" hcl:"log_to"`
	JSONLogFormat    bool                     `json:"json_log_format" yaml:"json_log_format" hcl:"json_log_format"`
	DataDir          string                   `json:"data_dir" yaml:"data_dir" hcl:"data_dir"`
	PollInterval     string                   `json:"poll_interval" yaml:"poll_interval" hcl:"poll_interval"`
	MaxCatchUpRounds uint64                   `json:"max_catch_up_rounds" yaml:"max_catch_up_rounds" hcl:"max_catch_up_rounds"`
	Telemetry        *Telemetry               `json:"telemetry" yaml:"telemetry" hcl:"telemetry"`
	Subnets          map[string]*SubnetConfig `json:"subnets" yaml:"subnets" hcl:"subnets"`
}

// Telemetry holds the config details for metric services
type Telemetry struct {
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr" hcl:"prometheus_addr"`
}

// SubnetConfig is the raw configuration of one subnet
type SubnetConfig struct {
	ID                   string   `json:"id" yaml:"id" hcl:"id"`
	NetworkType          string   `json:"network_type" yaml:"network_type" hcl:"network_type"`
	JSONRPCAddr          string   `json:"jsonrpc_api_http" yaml:"jsonrpc_api_http" hcl:"jsonrpc_api_http"`
	AuthToken            string   `json:"auth_token" yaml:"auth_token" hcl:"auth_token"`
	GatewayAddr          string   `json:"gateway_addr" yaml:"gateway_addr" hcl:"gateway_addr"`
	Accounts             []string `json:"accounts" yaml:"accounts" hcl:"accounts"`
	KeystoreDir          string   `json:"keystore_dir" yaml:"keystore_dir" hcl:"keystore_dir"`
	KeystorePasswordFile string   `json:"keystore_password_file" yaml:"keystore_password_file" hcl:"keystore_password_file"`
	Checkpoints          []string `json:"checkpoints" yaml:"checkpoints" hcl:"checkpoints"`
}

// DefaultConfig returns the default checkpointer configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         DefaultLogLevel,
		DataDir:          "",
		PollInterval:     DefaultPollInterval.String(),
		MaxCatchUpRounds: DefaultMaxCatchUpRounds,
		Telemetry:        &Telemetry{},
		Subnets:          map[string]*SubnetConfig{},
	}
}

// ReadConfigFile reads the config file from the specified path, builds a Config object
// and returns it.
//
// Supported file types: .json, .hcl, .yaml, .yml
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var unmarshalFunc func([]byte, interface{}) error

	switch {
	case strings.HasSuffix(path, ".hcl"):
		unmarshalFunc = hcl.Unmarshal
	case strings.HasSuffix(path, ".json"):
		unmarshalFunc = json.Unmarshal
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		unmarshalFunc = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("suffix of %s is neither hcl, json, yaml nor yml", path)
	}

	config := DefaultConfig()

	if err := unmarshalFunc(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if config.Telemetry == nil {
		config.Telemetry = &Telemetry{}
	}

	return config, nil
}

// Interval returns the parsed poll interval
func (c *Config) Interval() (time.Duration, error) {
	if c.PollInterval == "" {
		return DefaultPollInterval, nil
	}

	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll interval %q: %w", c.PollInterval, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("poll interval must be positive, got %s", d)
	}

	return d, nil
}

// Validate checks the whole configuration and reports every problem found
func (c *Config) Validate() error {
	var result error

	if _, err := c.Interval(); err != nil {
		result = multierror.Append(result, err)
	}

	if len(c.Subnets) == 0 {
		result = multierror.Append(result, errNoSubnets)
	}

	if _, err := c.BuildSubnets(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// SubnetNames returns the configured subnet names in a stable order
func (c *Config) SubnetNames() []string {
	names := make([]string, 0, len(c.Subnets))
	for name := range c.Subnets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// BuildSubnets converts the raw subnet records into immutable subnet values
func (c *Config) BuildSubnets() (map[string]*types.Subnet, error) {
	var (
		result  error
		subnets = make(map[string]*types.Subnet, len(c.Subnets))
		seen    = make(map[string]string, len(c.Subnets))
	)

	for _, name := range c.SubnetNames() {
		subnet, err := c.Subnets[name].build(name)
		if err != nil {
			result = multierror.Append(result, err)

			continue
		}

		if other, ok := seen[subnet.ID.String()]; ok {
			result = multierror.Append(result,
				fmt.Errorf("subnets %s and %s share the id %s", other, name, subnet.ID))

			continue
		}

		seen[subnet.ID.String()] = name
		subnets[name] = subnet
	}

	if result != nil {
		return nil, result
	}

	return subnets, nil
}

func (s *SubnetConfig) build(name string) (*types.Subnet, error) {
	if s == nil {
		return nil, fmt.Errorf("subnet %s: empty record", name)
	}

	var result error

	fail := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("subnet %s: "+format, append([]interface{}{name}, args...)...))
	}

	id, err := types.ParseSubnetID(s.ID)
	if err != nil {
		fail("%w", err)
	}

	networkType, err := types.ParseNetworkType(s.NetworkType)
	if err != nil {
		fail("%w", err)
	}

	if s.JSONRPCAddr == "" {
		fail("missing jsonrpc_api_http")
	}

	gatewayRaw := s.GatewayAddr
	if gatewayRaw == "" && networkType == types.FVM {
		gatewayRaw = DefaultGatewayAddr
	}

	var gateway types.Address

	if gatewayRaw == "" {
		fail("missing gateway_addr")
	} else if gateway, err = types.ParseAddress(gatewayRaw); err != nil {
		fail("gateway: %w", err)
	}

	accounts := make([]types.Address, 0, len(s.Accounts))

	for _, raw := range s.Accounts {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			fail("account: %w", err)

			continue
		}

		accounts = append(accounts, addr)
	}

	if networkType == types.FEVM && len(accounts) > 0 && s.KeystoreDir == "" {
		fail("fevm subnets with accounts require keystore_dir")
	}

	directions := make([]types.Direction, 0, len(s.Checkpoints))

	for _, raw := range s.Checkpoints {
		dir, err := types.ParseDirection(raw)
		if err != nil {
			fail("%w", err)

			continue
		}

		directions = append(directions, dir)
	}

	if result != nil {
		return nil, result
	}

	return &types.Subnet{
		Name:         name,
		ID:           id,
		NetworkType:  networkType,
		RPCAddr:      s.JSONRPCAddr,
		AuthToken:    s.AuthToken,
		GatewayAddr:  gateway,
		Accounts:     accounts,
		KeystoreDir:  s.KeystoreDir,
		PasswordFile: s.KeystorePasswordFile,
		Directions:   directions,
	}, nil
}
