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

package pps

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

const (
	edgePollTimeout = 100 * time.Millisecond
	// DefaultSerialPollInterval is how often the serial source reads modem lines
	DefaultSerialPollInterval = time.Millisecond
)

// GPIOSource reports edges of a GPIO pin wired to a PPS output
type GPIOSource struct {
	pin     gpio.PinIn
	handler PulseHandler
}

// NewGPIOSource configures pin for edge detection
func NewGPIOSource(pin gpio.PinIn, edge gpio.Edge, handler PulseHandler) (*GPIOSource, error) {
	if err := pin.In(gpio.PullNoChange, edge); err != nil {
		return nil, fmt.Errorf("configuring %s for pps: %w", pin, err)
	}
	log.Infof("watching %s for PPS", pin)
	return &GPIOSource{pin: pin, handler: handler}, nil
}

// Run reports pulses until ctx is done
func (s *GPIOSource) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if s.pin.WaitForEdge(edgePollTimeout) {
			s.handler.HandlePPS()
		}
	}
	return nil
}

// ModemLines is the part of a serial port the serial source needs
type ModemLines interface {
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	Close() error
}

// SerialSource reports rising edges of the DCD line of a serial port, the usual
// way GPS receivers expose PPS on RS-232. Lines are polled, so pulses are stamped
// with up to one poll interval of latency.
type SerialSource struct {
	port     ModemLines
	handler  PulseHandler
	interval time.Duration
	dcd      bool
	close    sync.Once
}

// OpenSerialSource opens serial port name and polls its DCD line
func OpenSerialSource(name string, handler PulseHandler) (*SerialSource, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	log.Infof("watching DCD of %s for PPS", name)
	return NewSerialSource(port, handler, DefaultSerialPollInterval), nil
}

// NewSerialSource polls DCD of an already open port
func NewSerialSource(port ModemLines, handler PulseHandler, interval time.Duration) *SerialSource {
	if interval <= 0 {
		interval = DefaultSerialPollInterval
	}
	return &SerialSource{port: port, handler: handler, interval: interval}
}

// Close closes the port. It is safe to call more than once and after Run.
func (s *SerialSource) Close() error {
	var err error
	s.close.Do(func() {
		err = s.port.Close()
	})
	return err
}

// Run reports pulses until ctx is done or the port fails. The port is closed on return.
func (s *SerialSource) Run(ctx context.Context) error {
	defer s.Close()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			bits, err := s.port.GetModemStatusBits()
			if err != nil {
				return fmt.Errorf("reading modem status: %w", err)
			}
			if bits.DCD && !s.dcd {
				s.handler.HandlePPS()
			}
			s.dcd = bits.DCD
		}
	}
}
