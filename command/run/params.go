package run

import (
	"errors"

	"github.com/consensus-shipyard/ipc-checkpointer/config"
)

const prometheusAddressFlag = "prometheus"

var errMissingConfig = errors.New("the config file path is required")

type runParams struct {
	configPath     string
	logLevel       string
	dataDir        string
	prometheusAddr string
}

var params = &runParams{}

// loadConfig reads the config file and applies the command line overrides on top
func (p *runParams) loadConfig() (*config.Config, error) {
	if p.configPath == "" {
		return nil, errMissingConfig
	}

	cfg, err := config.ReadConfigFile(p.configPath)
	if err != nil {
		return nil, err
	}

	if p.logLevel != "" {
		cfg.LogLevel = p.logLevel
	}

	if p.dataDir != "" {
		cfg.DataDir = p.dataDir
	}

	if p.prometheusAddr != "" {
		cfg.Telemetry.PrometheusAddr = p.prometheusAddr
	}

	return cfg, nil
}
