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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tickclock/tickclock/daemon"
	"github.com/tickclock/tickclock/stats"
)

var (
	runConfigFlag         string
	runMonitoringPortFlag int
	runTickSourceFlag     string
	runPPSGPIOFlag        string
	runPPSSerialFlag      string
)

func init() {
	RootCmd.AddCommand(runCmd)
	defaults := daemon.DefaultConfig()
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to the config")
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to run monitoring server on, 0 disables it")
	runCmd.Flags().StringVar(&runTickSourceFlag, "ticksource", defaults.TickSource.Kind, "tick counter to run on: raw or runtime")
	runCmd.Flags().StringVar(&runPPSGPIOFlag, "pps-gpio", "", "GPIO pin the PPS signal is wired to")
	runCmd.Flags().StringVar(&runPPSSerialFlag, "pps-serial", "", "serial port with PPS on DCD")
}

func runRun(c *cobra.Command) error {
	setFlags := map[string]bool{}
	for _, name := range []string{"monitoringport", "ticksource", "pps-gpio", "pps-serial"} {
		setFlags[name] = c.Flags().Changed(name)
	}
	cfg, err := daemon.PrepareConfig(runConfigFlag, runMonitoringPortFlag, runTickSourceFlag, runPPSGPIOFlag, runPPSSerialFlag, setFlags)
	if err != nil {
		return err
	}
	log.Debugf("config: %+v", cfg)

	d, err := daemon.New(cfg, stats.NewJSONStats())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long:  "Run the sync daemon: keep UTC on the tick counter, steer it from the host clock and PPS, capture external events and export stats.",
	Run: func(c *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := runRun(c); err != nil {
			log.Fatal(err)
		}
	},
}
