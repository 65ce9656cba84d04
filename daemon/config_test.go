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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickclock/tickclock/extevent"
	"github.com/tickclock/tickclock/quality"
	"github.com/tickclock/tickclock/servo"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"monitoring port", func(c *Config) { c.MonitoringPort = -1 }, "monitoringport must be 0 or positive"},
		{"max connections", func(c *Config) { c.MaxConnections = -1 }, "maxconnections must be 0 or positive"},
		{"metrics interval", func(c *Config) { c.MetricsInterval = 0 }, "metricsinterval must be greater than zero"},
		{"quality history", func(c *Config) { c.QualityHistory = 1 }, "qualityhistory must be at least 2"},
		{"tick source kind", func(c *Config) { c.TickSource.Kind = "tsc" }, "invalid ticksource config"},
		{"tick source width", func(c *Config) { c.TickSource.Width = 65 }, "width must be between 1 and 64"},
		{"sync params", func(c *Config) { c.SyncParams.MinJump = 0 }, "invalid syncparams config"},
		{"reference interval", func(c *Config) { c.Reference.Interval = 0 }, "invalid reference config"},
		{"pps both sources", func(c *Config) { c.PPS.GPIO = "GPIO4"; c.PPS.Serial = "/dev/ttyS0" }, "only one of gpio and serial"},
		{"pps edge", func(c *Config) { c.PPS.Edge = "up" }, "edge must be either rising, falling or both"},
		{"events capacity", func(c *Config) { c.Events.Capacity = 0 }, "capacity must be greater than zero"},
		{"events pin channel", func(c *Config) { c.Events.Pins = map[string]string{"ch7": "GPIO5"} }, "invalid events config"},
		{"events pin disabled", func(c *Config) { c.Events.Pins = map[string]string{"ch1": "GPIO5"} }, "pin bound to disabled channel CH1"},
		{"events pin multiple", func(c *Config) {
			c.Events.Channels = extevent.AllChannels
			c.Events.Pins = map[string]string{"ch1|ch2": "GPIO5"}
		}, "exactly one channel"},
		{"quality", func(c *Config) { c.Quality.Quality = "mean(nothing, 3)" }, "invalid quality config"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(c)
			require.ErrorContains(t, c.Validate(), tc.wantErr)
		})
	}
}

func TestConfigValidateReferenceDisabled(t *testing.T) {
	c := DefaultConfig()
	c.Reference.Enabled = false
	c.Reference.Interval = 0
	require.NoError(t, c.Validate())
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig("/does/not/exist")
	require.Error(t, err)
}

func TestReadConfig(t *testing.T) {
	f, err := os.CreateTemp("", "tickclock")
	require.NoError(t, err)
	defer os.Remove(f.Name()) // clean up
	_, err = f.Write([]byte(`monitoringport: 0
ticksource:
  kind: runtime
  width: 32
syncparams:
  offset_p: 0.02
  min_jump: 50ms
reference:
  interval: 500ms
  require_host_sync: true
pps:
  serial: /dev/ttyS0
events:
  channels: CH1|CH2
  pins:
    ch1: GPIO5
quality:
  eligible: "q < 10"
`))
	require.NoError(t, err)
	cfg, err := ReadConfig(f.Name())
	require.NoError(t, err)

	wantParams := *servo.DefaultSyncParams()
	wantParams.OffsetP = 0.02
	wantParams.MinJump = 50 * time.Millisecond

	want := DefaultConfig()
	want.MonitoringPort = 0
	want.TickSource = TickSourceConfig{Kind: TickSourceRuntime, Width: 32}
	want.SyncParams = wantParams
	want.Reference = ReferenceConfig{Enabled: true, Interval: 500 * time.Millisecond, RequireHostSync: true}
	want.PPS.Serial = "/dev/ttyS0"
	want.Events.Channels = extevent.Channel1.Union(extevent.Channel2)
	want.Events.Pins = map[string]string{"ch1": "GPIO5"}
	want.Quality = quality.Math{Quality: quality.MathDefaultQuality, Eligible: "q < 10"}
	require.Equal(t, want, cfg)
	require.NoError(t, cfg.Validate())
}

func TestReadConfigBadYAML(t *testing.T) {
	f, err := os.CreateTemp("", "tickclock")
	require.NoError(t, err)
	defer os.Remove(f.Name()) // clean up
	_, err = f.Write([]byte("events:\n  channels: CH9\n"))
	require.NoError(t, err)
	_, err = ReadConfig(f.Name())
	require.Error(t, err)
}

func TestReadConfigNonFiniteSyncParams(t *testing.T) {
	for _, v := range []string{".nan", ".inf", "-.inf"} {
		f, err := os.CreateTemp("", "tickclock")
		require.NoError(t, err)
		defer os.Remove(f.Name()) // clean up
		_, err = f.Write([]byte("syncparams:\n  max_rate_correction_ppm: " + v + "\n"))
		require.NoError(t, err)
		cfg, err := ReadConfig(f.Name())
		require.NoError(t, err)
		require.ErrorContains(t, cfg.Validate(), "invalid syncparams config", v)
	}
}

func TestPrepareConfig(t *testing.T) {
	setFlags := map[string]bool{
		"monitoringport": true,
		"ticksource":     true,
		"pps-gpio":       true,
	}
	cfg, err := PrepareConfig("", 9999, TickSourceRuntime, "GPIO17", "/dev/ignored", setFlags)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.MonitoringPort)
	require.Equal(t, TickSourceRuntime, cfg.TickSource.Kind)
	require.Equal(t, "GPIO17", cfg.PPS.GPIO)
	require.Equal(t, "", cfg.PPS.Serial)

	_, err = PrepareConfig("", 0, "nope", "", "", map[string]bool{"ticksource": true})
	require.ErrorContains(t, err, "validating config")

	_, err = PrepareConfig("/does/not/exist", 0, "", "", "", nil)
	require.ErrorContains(t, err, "reading config")
}

func TestParseEdge(t *testing.T) {
	for _, s := range []string{"rising", "Falling", "BOTH"} {
		_, err := parseEdge(s)
		require.NoError(t, err, s)
	}
	_, err := parseEdge("")
	require.Error(t, err)
}
