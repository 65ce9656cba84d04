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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/tickclock/tickclock/timebase"
)

func TestLatchWithMockCorrector(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := NewMockCorrector(ctrl)
	c.EXPECT().CorrectAt(timebase.MonotonicTime(77), gomock.Any()).DoAndReturn(
		func(_ timebase.MonotonicTime, offset func(timebase.UtcTime) time.Duration) time.Duration {
			return offset(4_000_000)
		})
	var l Latch
	l.Arm(5_000_000)
	d, ok := l.Fire(77, c)
	require.True(t, ok)
	require.Equal(t, time.Second, d)
}

func TestGPIOSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewMockPulseHandler(ctrl)
	h.EXPECT().HandlePPS().Times(2)
	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level)}
	src, err := NewGPIOSource(pin, gpio.RisingEdge, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx) }()
	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.High
	cancel()
	require.NoError(t, <-errc)
}

type fakeLines struct {
	mu     sync.Mutex
	dcd    []bool
	i      int
	err    error
	closed bool
	closes int
}

func (f *fakeLines) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.i >= len(f.dcd) {
		if f.err != nil {
			return nil, f.err
		}
		return &serial.ModemStatusBits{DCD: f.dcd[len(f.dcd)-1]}, nil
	}
	v := f.dcd[f.i]
	f.i++
	return &serial.ModemStatusBits{DCD: v}, nil
}

func (f *fakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func TestSerialSourceRisingEdges(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewMockPulseHandler(ctrl)
	h.EXPECT().HandlePPS().Times(2)
	port := &fakeLines{
		dcd: []bool{false, true, true, false, false, true, false},
		err: errors.New("unplugged"),
	}
	src := NewSerialSource(port, h, time.Millisecond)
	err := src.Run(context.Background())
	require.ErrorContains(t, err, "unplugged")
	require.True(t, port.closed)
}

func TestSerialSourceStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewMockPulseHandler(ctrl)
	port := &fakeLines{dcd: []bool{false}}
	src := NewSerialSource(port, h, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, src.Run(ctx))
	require.True(t, port.closed)
}

func TestSerialSourceClosesPortOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewMockPulseHandler(ctrl)
	port := &fakeLines{dcd: []bool{false}}
	src := NewSerialSource(port, h, 0)
	require.NoError(t, src.Close())
	require.True(t, port.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, src.Run(ctx))
	require.NoError(t, src.Close())
	require.Equal(t, 1, port.closes)
}
