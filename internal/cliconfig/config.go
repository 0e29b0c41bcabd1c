// Package cliconfig loads optional YAML default files for the mxl-*
// command-line tools, so a long-running deployment can pin its broker URL,
// interval, and QoS in one place instead of repeating flags in a unit file.
package cliconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HeartbeatDefaults mirrors cmd/mxl-heartbeat-mqtt's flag set. Any field left
// at its zero value does not override the flag's own default or an
// explicitly passed flag.
type HeartbeatDefaults struct {
	Domain   string        `yaml:"domain"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
	QoS      int           `yaml:"qos"`
}

// LoadHeartbeatDefaults reads and parses a YAML defaults file for
// mxl-heartbeat-mqtt.
func LoadHeartbeatDefaults(path string) (*HeartbeatDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg HeartbeatDefaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}
