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

/*
Package daemon wires the sync engine into a long running process: it services
the tick counter, feeds corrections from the host clock, watches PPS and
external event pins, evaluates sync quality and exports stats.
*/
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	sddaemon "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tickclock/tickclock/clock"
	"github.com/tickclock/tickclock/extevent"
	"github.com/tickclock/tickclock/monotonic"
	"github.com/tickclock/tickclock/pps"
	"github.com/tickclock/tickclock/quality"
	"github.com/tickclock/tickclock/stats"
	"github.com/tickclock/tickclock/timebase"
)

// runner is a pulse or edge source
type runner interface {
	Run(ctx context.Context) error
}

// Daemon runs the engine and everything around it
type Daemon struct {
	cfg       *Config
	engine    *clock.Engine
	stats     *stats.JSONStats
	evaluator *quality.Evaluator
	sampleLog *os.File
	sources   []runner

	// host clock, replaceable in tests
	now        func() time.Time
	hostStatus func() (*clock.HostStatus, error)
}

// NewTickSource creates the counter described by cfg
func NewTickSource(cfg TickSourceConfig) (monotonic.TickSource, error) {
	switch cfg.Kind {
	case TickSourceRaw:
		src, err := monotonic.NewRawClockTicks(cfg.Width)
		if err != nil {
			return nil, err
		}
		return src, nil
	case TickSourceRuntime:
		return monotonic.NewRuntimeTicks(cfg.Width), nil
	}
	return nil, fmt.Errorf("unsupported tick source %q", cfg.Kind)
}

// New creates the engine, installs it as the process clock and attaches configured pins
func New(cfg *Config, st *stats.JSONStats) (*Daemon, error) {
	src, err := NewTickSource(cfg.TickSource)
	if err != nil {
		return nil, fmt.Errorf("creating tick source: %w", err)
	}
	engine := clock.NewEngine(src, nil, cfg.Events.Capacity)
	d, err := newDaemon(cfg, engine, st)
	if err != nil {
		return nil, err
	}
	if err := d.attachPins(); err != nil {
		d.Close()
		return nil, err
	}
	// installed last so a failed setup leaves the process clock untouched
	if err := clock.Register(engine); err != nil {
		d.Close()
		return nil, fmt.Errorf("registering engine: %w", err)
	}
	return d, nil
}

func newDaemon(cfg *Config, engine *clock.Engine, st *stats.JSONStats) (*Daemon, error) {
	engine.Init()
	if err := engine.SetSyncParams(cfg.SyncParams); err != nil {
		return nil, err
	}
	engine.SetExternalEventChannels(cfg.Events.Channels)

	d := &Daemon{
		cfg:        cfg,
		engine:     engine,
		stats:      st,
		now:        time.Now,
		hostStatus: clock.ReadHostStatus,
	}
	var l quality.Logger
	if cfg.SampleLog != "" {
		f, err := os.OpenFile(cfg.SampleLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening sample log: %w", err)
		}
		d.sampleLog = f
		l = quality.NewCSVLogger(f)
	}
	evaluator, err := quality.NewEvaluator(cfg.Quality, cfg.QualityHistory, l)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("preparing quality evaluation: %w", err)
	}
	d.evaluator = evaluator

	st.SetCounter("reference.corrections", 0)
	st.SetCounter("reference.host_unsynced", 0)
	st.SetCounter("pps.pulses", 0)
	for i := 0; i < extevent.ChannelCount; i++ {
		st.SetCounter(eventCounter(extevent.ChannelAt(i)), 0)
	}
	return d, nil
}

// Engine returns the sync engine
func (d *Daemon) Engine() *clock.Engine {
	return d.engine
}

// Close releases the sample log and any source still holding a device
func (d *Daemon) Close() {
	if d.sampleLog != nil {
		d.sampleLog.Close()
	}
	for _, src := range d.sources {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warningf("closing source: %v", err)
			}
		}
	}
}

func (d *Daemon) attachPins() error {
	if d.cfg.PPS.Enabled() {
		h := &ppsArmer{engine: d.engine, now: d.now, stats: d.stats}
		if d.cfg.PPS.GPIO != "" {
			edge, _ := parseEdge(d.cfg.PPS.Edge)
			pin, err := extevent.PinByName(d.cfg.PPS.GPIO)
			if err != nil {
				return err
			}
			src, err := pps.NewGPIOSource(pin, edge, h)
			if err != nil {
				return err
			}
			d.sources = append(d.sources, src)
		} else {
			src, err := pps.OpenSerialSource(d.cfg.PPS.Serial, h)
			if err != nil {
				return err
			}
			d.sources = append(d.sources, src)
		}
		h.armNext()
	}
	if len(d.cfg.Events.Pins) > 0 {
		edge, _ := parseEdge(d.cfg.Events.Edge)
		src := extevent.NewGPIOSource(d.engine, edge)
		for name, pinName := range d.cfg.Events.Pins {
			ch, err := extevent.ParseChannels(name)
			if err != nil {
				return err
			}
			pin, err := extevent.PinByName(pinName)
			if err != nil {
				return err
			}
			if err := src.Attach(ch, pin); err != nil {
				return err
			}
		}
		d.sources = append(d.sources, src)
	}
	return nil
}

// ppsArmer forwards pulses to the engine and arms the latch with the following host second
type ppsArmer struct {
	engine *clock.Engine
	now    func() time.Time
	stats  stats.Server
}

func (p *ppsArmer) armNext() {
	next := p.now().Truncate(time.Second).Add(time.Second)
	p.engine.SetUtcNextPPS(timebase.UtcFromTime(next))
}

// HandlePPS implements pps.PulseHandler
func (p *ppsArmer) HandlePPS() {
	p.engine.HandlePPS()
	p.stats.UpdateCounterBy("pps.pulses", 1)
	// the pulse marks a whole second, anything under half a second late still belongs to it
	next := p.now().Round(time.Second).Add(time.Second)
	p.engine.SetUtcNextPPS(timebase.UtcFromTime(next))
}

func eventCounter(ch extevent.Channels) string {
	return fmt.Sprintf("events.%s", ch)
}

// correctFromHost feeds the host clock offset to the engine
func (d *Daemon) correctFromHost() {
	if d.cfg.Reference.RequireHostSync {
		hs, err := d.hostStatus()
		if err != nil {
			log.Warningf("skipping reference correction: %v", err)
			d.stats.UpdateCounterBy("reference.host_unsynced", 1)
			return
		}
		if !hs.Synchronized {
			log.Debugf("skipping reference correction, host clock is not synchronized")
			d.stats.UpdateCounterBy("reference.host_unsynced", 1)
			return
		}
	}
	m := d.engine.Monotonic()
	host := timebase.UtcFromTime(d.now())
	d.engine.CorrectAt(m, func(observed timebase.UtcTime) time.Duration {
		return host.Sub(observed)
	})
	d.stats.UpdateCounterBy("reference.corrections", 1)
}

func (d *Daemon) runReference(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Reference.Interval)
	defer ticker.Stop()
	for {
		d.correctFromHost()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) consumeEvents(ctx context.Context) error {
	for {
		ev, err := d.engine.FetchExternalEventContext(ctx)
		if err != nil {
			return nil
		}
		log.Infof("external event #%d on %s at %s", ev.ID, ev.Channel, ev.UTC)
		d.stats.UpdateCounterBy(eventCounter(ev.Channel), 1)
	}
}

// collect publishes engine status and quality
func (d *Daemon) collect() {
	st := stats.NewStatus(d.engine.Status())
	d.evaluator.Observe(&quality.DataPoint{
		SyncErrorUS: float64(st.SyncErrorUS),
		RatePPM:     st.RateCorrectionPPM,
		Locked:      st.Locked,
	})
	res, err := d.evaluator.Evaluate()
	if err != nil {
		log.Debugf("quality: %v", err)
	} else {
		st.QualityUS = res.QualityUS
		st.Eligible = res.Eligible
	}
	for k, v := range st.Counters() {
		d.stats.SetCounter(k, v)
	}
	d.stats.SetStatus(st)
	if err := d.stats.CollectSysStats(d.cfg.MetricsInterval); err != nil {
		log.Warningf("failed to get system metrics %s", err)
	}
}

func (d *Daemon) runCollector(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.collect()
		}
	}
}

// Run runs everything until ctx is done or any part fails
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.engine.Run(ctx)
	})
	if d.cfg.Reference.Enabled {
		eg.Go(func() error {
			return d.runReference(ctx)
		})
	}
	for _, src := range d.sources {
		src := src
		eg.Go(func() error {
			return src.Run(ctx)
		})
	}
	if d.cfg.Events.Channels != extevent.ChannelNone {
		eg.Go(func() error {
			return d.consumeEvents(ctx)
		})
	}
	eg.Go(func() error {
		return d.runCollector(ctx)
	})
	if d.cfg.MonitoringPort > 0 {
		mux := d.stats.Handler()
		mux.Handle("/metrics", stats.NewPrometheusExporter(d.stats, "tickclock.").Handler())
		addr := fmt.Sprintf(":%d", d.cfg.MonitoringPort)
		eg.Go(func() error {
			return stats.Serve(ctx, addr, d.cfg.MaxConnections, mux)
		})
	}
	if ok, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
		log.Warningf("notifying systemd: %v", err)
	} else if ok {
		log.Debug("notified systemd")
	}
	log.Info("running")
	return eg.Wait()
}
