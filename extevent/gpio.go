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

package extevent

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// edgePollTimeout bounds how long a watcher blocks in WaitForEdge before checking for cancellation
const edgePollTimeout = 100 * time.Millisecond

// EdgeHandler receives hardware edges. It is called from the watcher goroutine
// and must return quickly.
type EdgeHandler interface {
	HandleExternalEdge(ch Channels)
}

var driversOnce = sync.OnceValue(func() error {
	_, err := driverreg.Init()
	return err
})

// PinByName looks up a GPIO pin in the periph registry, initializing drivers on first use
func PinByName(name string) (gpio.PinIn, error) {
	if err := driversOnce(); err != nil {
		return nil, fmt.Errorf("initializing gpio drivers: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no gpio pin named %q", name)
	}
	return p, nil
}

// GPIOSource watches one GPIO pin per channel and reports edges to a handler
type GPIOSource struct {
	handler EdgeHandler
	edge    gpio.Edge
	pins    [ChannelCount]gpio.PinIn
}

// NewGPIOSource creates a source reporting given edges to handler
func NewGPIOSource(handler EdgeHandler, edge gpio.Edge) *GPIOSource {
	return &GPIOSource{handler: handler, edge: edge}
}

// Attach configures pin for edge detection and binds it to channel ch
func (s *GPIOSource) Attach(ch Channels, pin gpio.PinIn) error {
	idx := ch.Index()
	if idx < 0 {
		return fmt.Errorf("%s is not a single channel", ch)
	}
	if err := pin.In(gpio.PullNoChange, s.edge); err != nil {
		return fmt.Errorf("configuring %s for edge detection: %w", pin, err)
	}
	s.pins[idx] = pin
	log.Infof("watching %s for %s edges on %s", pin, s.edge, ch)
	return nil
}

// Attached returns channels with a pin bound
func (s *GPIOSource) Attached() Channels {
	res := ChannelNone
	for i, p := range s.pins {
		if p != nil {
			res = res.Union(ChannelAt(i))
		}
	}
	return res
}

// Run watches all attached pins until ctx is done
func (s *GPIOSource) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i, p := range s.pins {
		if p == nil {
			continue
		}
		ch := ChannelAt(i)
		pin := p
		eg.Go(func() error {
			for ctx.Err() == nil {
				if pin.WaitForEdge(edgePollTimeout) {
					s.handler.HandleExternalEdge(ch)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
