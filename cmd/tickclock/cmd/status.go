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
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/term"

	"github.com/tickclock/tickclock/daemon"
	"github.com/tickclock/tickclock/stats"
)

var (
	statusAddressFlag  string
	statusCountersFlag bool
	statusRawFlag      bool
)

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusAddressFlag, "address", "a", fmt.Sprintf("http://localhost:%d", daemon.DefaultConfig().MonitoringPort), "monitoring address of the daemon")
	statusCmd.Flags().BoolVarP(&statusCountersFlag, "counters", "C", false, "print all counters as well")
	statusCmd.Flags().BoolVar(&statusRawFlag, "raw", false, "dump fetched data as is")
}

func fmtBool(v bool) string {
	if v {
		return color.GreenString("%v", v)
	}
	return color.RedString("%v", v)
}

func fmtState(s string) string {
	switch s {
	case "locked":
		return color.GreenString(s)
	case "jump", "unset":
		return color.RedString(s)
	}
	return color.YellowString(s)
}

func printStatus(w io.Writer, st *stats.Status) error {
	table := tablewriter.NewWriter(w)
	table.Header("field", "value")
	rows := [][]string{
		{"utc", st.UTC},
		{"monotonic", fmt.Sprintf("%dus", st.MonotonicUS)},
		{"state", fmtState(st.State)},
		{"locked", fmtBool(st.Locked)},
		{"sync error", fmt.Sprintf("%dus", st.SyncErrorUS)},
		{"rate correction", fmt.Sprintf("%.3fppm", st.RateCorrectionPPM)},
		{"rate error", fmt.Sprintf("%.3fppm", st.FilteredRateErrorPPM)},
		{"jumps", fmt.Sprintf("%d", st.JumpCount)},
		{"overflows", fmt.Sprintf("%d", st.Overflows)},
		{"pps", fmt.Sprintf("armed=%v fired=%d", st.PPSArmed, st.PPSFired)},
		{"events", fmt.Sprintf("%s queued=%d dropped=%d", st.EventChannels, st.EventsQueued, st.EventsDropped)},
		{"quality", fmt.Sprintf("%.3fus", st.QualityUS)},
		{"eligible", fmtBool(st.Eligible)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func printCounters(w io.Writer, counters map[string]int64) error {
	keys := maps.Keys(counters)
	sort.Strings(keys)
	table := tablewriter.NewWriter(w)
	table.Header("counter", "value")
	for _, k := range keys {
		if err := table.Append([]string{k, fmt.Sprintf("%d", counters[k])}); err != nil {
			return err
		}
	}
	return table.Render()
}

func statusRun(w io.Writer, address string, withCounters, raw bool) error {
	st, err := stats.FetchStatus(address)
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}
	var counters map[string]int64
	if withCounters {
		if counters, err = stats.FetchCounters(address); err != nil {
			return fmt.Errorf("fetching counters: %w", err)
		}
	}
	if raw {
		spew.Fdump(w, st)
		if withCounters {
			spew.Fdump(w, counters)
		}
		return nil
	}
	if err := printStatus(w, st); err != nil {
		return err
	}
	if withCounters {
		return printCounters(w, counters)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print status of the running daemon",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}

		if err := statusRun(os.Stdout, statusAddressFlag, statusCountersFlag, statusRawFlag); err != nil {
			log.Fatal(err)
		}
	},
}
