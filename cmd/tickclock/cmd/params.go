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
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/tickclock/tickclock/daemon"
	"github.com/tickclock/tickclock/quality"
)

var paramsConfigFlag string

func init() {
	RootCmd.AddCommand(paramsCmd)
	paramsCmd.Flags().StringVarP(&paramsConfigFlag, "config", "c", "", "config to print instead of defaults")
}

func paramsRun(w io.Writer, cfgPath string) error {
	cfg := daemon.DefaultConfig()
	if cfgPath != "" {
		var err error
		if cfg, err = daemon.ReadConfig(cfgPath); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print effective daemon config",
	Long:  "Print effective daemon config as YAML.\n\n" + quality.MathHelp,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := paramsRun(os.Stdout, paramsConfigFlag); err != nil {
			log.Fatal(err)
		}
	},
}
