/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
	"periph.io/x/conn/v3/gpio"

	"github.com/tickclock/tickclock/extevent"
	"github.com/tickclock/tickclock/quality"
	"github.com/tickclock/tickclock/servo"
)

// supported tick sources
const (
	TickSourceRaw     = "raw"
	TickSourceRuntime = "runtime"
)

// TickSourceConfig describes the counter the monotonic time base is built on
type TickSourceConfig struct {
	Kind  string `yaml:"kind"`  // raw or runtime
	Width uint   `yaml:"width"` // counter width in bits, narrower counters wrap
}

// Validate TickSourceConfig is sane
func (c *TickSourceConfig) Validate() error {
	if c.Kind != TickSourceRaw && c.Kind != TickSourceRuntime {
		return fmt.Errorf("kind must be either %q or %q", TickSourceRaw, TickSourceRuntime)
	}
	if c.Width == 0 || c.Width > 64 {
		return fmt.Errorf("width must be between 1 and 64")
	}
	return nil
}

// ReferenceConfig describes the host clock reference feed
type ReferenceConfig struct {
	Enabled         bool          `yaml:"enabled"`           // feed host clock offset to the engine
	Interval        time.Duration `yaml:"interval"`          // how often
	RequireHostSync bool          `yaml:"require_host_sync"` // skip corrections while the kernel reports host clock unsynchronized
}

// Validate ReferenceConfig is sane
func (c *ReferenceConfig) Validate() error {
	if c.Enabled && c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	return nil
}

// PPSConfig describes where PPS pulses come from
type PPSConfig struct {
	GPIO   string `yaml:"gpio"`   // GPIO pin name
	Serial string `yaml:"serial"` // serial port, PPS on DCD
	Edge   string `yaml:"edge"`   // rising, falling or both, GPIO only
}

// Enabled reports whether a PPS source is configured
func (c *PPSConfig) Enabled() bool {
	return c.GPIO != "" || c.Serial != ""
}

// Validate PPSConfig is sane
func (c *PPSConfig) Validate() error {
	if c.GPIO != "" && c.Serial != "" {
		return fmt.Errorf("only one of gpio and serial can be used")
	}
	if _, err := parseEdge(c.Edge); err != nil {
		return err
	}
	return nil
}

// EventsConfig describes external event capture
type EventsConfig struct {
	Channels extevent.Channels `yaml:"channels"`       // enabled channels
	Pins     map[string]string `yaml:"pins,omitempty"` // channel to GPIO pin name
	Capacity int               `yaml:"capacity"`       // queue capacity
	Edge     string            `yaml:"edge"`           // rising, falling or both
}

// Validate EventsConfig is sane
func (c *EventsConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be greater than zero")
	}
	if _, err := parseEdge(c.Edge); err != nil {
		return err
	}
	for name := range c.Pins {
		ch, err := extevent.ParseChannels(name)
		if err != nil {
			return err
		}
		if !ch.Single() {
			return fmt.Errorf("pin must be bound to exactly one channel, got %q", name)
		}
		if !c.Channels.Has(ch) {
			return fmt.Errorf("pin bound to disabled channel %s", ch)
		}
	}
	return nil
}

// Config specifies daemon run options
type Config struct {
	MonitoringPort  int              `yaml:"monitoringport"`
	MaxConnections  int              `yaml:"maxconnections"`
	MetricsInterval time.Duration    `yaml:"metricsinterval"`
	TickSource      TickSourceConfig `yaml:"ticksource"`
	SyncParams      servo.SyncParams `yaml:"syncparams"`
	Reference       ReferenceConfig  `yaml:"reference"`
	PPS             PPSConfig        `yaml:"pps"`
	Events          EventsConfig     `yaml:"events"`
	Quality         quality.Math     `yaml:"quality"`
	QualityHistory  int              `yaml:"qualityhistory"`
	SampleLog       string           `yaml:"samplelog"` // CSV file to log quality samples to
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		MonitoringPort:  4270,
		MaxConnections:  16,
		MetricsInterval: time.Second,
		TickSource: TickSourceConfig{
			Kind:  TickSourceRaw,
			Width: 64,
		},
		SyncParams: *servo.DefaultSyncParams(),
		Reference: ReferenceConfig{
			Enabled:  true,
			Interval: time.Second,
		},
		PPS: PPSConfig{
			Edge: "rising",
		},
		Events: EventsConfig{
			Capacity: extevent.DefaultCapacity,
			Edge:     "rising",
		},
		Quality:        quality.DefaultMath(),
		QualityHistory: quality.MathDefaultHistory,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoringport must be 0 or positive")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("maxconnections must be 0 or positive")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metricsinterval must be greater than zero")
	}
	if c.QualityHistory < 2 {
		return fmt.Errorf("qualityhistory must be at least 2")
	}
	if err := c.TickSource.Validate(); err != nil {
		return fmt.Errorf("invalid ticksource config: %w", err)
	}
	if err := c.SyncParams.Validate(); err != nil {
		return fmt.Errorf("invalid syncparams config: %w", err)
	}
	if err := c.Reference.Validate(); err != nil {
		return fmt.Errorf("invalid reference config: %w", err)
	}
	if err := c.PPS.Validate(); err != nil {
		return fmt.Errorf("invalid pps config: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("invalid events config: %w", err)
	}
	if err := c.Quality.Prepare(); err != nil {
		return fmt.Errorf("invalid quality config: %w", err)
	}
	if !c.Reference.Enabled && !c.PPS.Enabled() {
		log.Warning("neither reference feed nor PPS is enabled, UTC will only be set through the API")
	}
	return nil
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, &c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, monitoringPort int, tickSource string, ppsGPIO string, ppsSerial string, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["monitoringport"] {
		warn("monitoringport")
		cfg.MonitoringPort = monitoringPort
	}
	if setFlags["ticksource"] {
		warn("ticksource")
		cfg.TickSource.Kind = tickSource
	}
	if setFlags["pps-gpio"] {
		warn("pps gpio")
		cfg.PPS.GPIO = ppsGPIO
	}
	if setFlags["pps-serial"] {
		warn("pps serial")
		cfg.PPS.Serial = ppsSerial
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func parseEdge(s string) (gpio.Edge, error) {
	switch strings.ToLower(s) {
	case "rising":
		return gpio.RisingEdge, nil
	case "falling":
		return gpio.FallingEdge, nil
	case "both":
		return gpio.BothEdges, nil
	}
	return gpio.NoEdge, fmt.Errorf("edge must be either rising, falling or both, got %q", s)
}
