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
	"fmt"
	"strings"

	"github.com/tickclock/tickclock/timebase"
)

// Channels is a set of external event channels
type Channels uint8

// External event channels
const (
	ChannelNone Channels = 0
	Channel1    Channels = 1 << 0
	Channel2    Channels = 1 << 1
	Channel3    Channels = 1 << 2
	Channel4    Channels = 1 << 3

	AllChannels = Channel1 | Channel2 | Channel3 | Channel4
)

// ChannelCount is the number of supported channels
const ChannelCount = 4

// Union returns channels present in either set
func (c Channels) Union(o Channels) Channels {
	return c | o
}

// Has reports whether every channel of o is in c. Nothing is in ChannelNone.
func (c Channels) Has(o Channels) bool {
	return o != ChannelNone && c&o == o
}

// Single reports whether c is exactly one valid channel
func (c Channels) Single() bool {
	return c&AllChannels == c && c != ChannelNone && c&(c-1) == 0
}

// Index returns zero based position of a single channel, -1 otherwise
func (c Channels) Index() int {
	if !c.Single() {
		return -1
	}
	for i := 0; i < ChannelCount; i++ {
		if c == 1<<i {
			return i
		}
	}
	return -1
}

// ChannelAt returns the channel at zero based index i
func ChannelAt(i int) Channels {
	if i < 0 || i >= ChannelCount {
		return ChannelNone
	}
	return Channels(1 << i)
}

func (c Channels) String() string {
	if c == ChannelNone {
		return "NONE"
	}
	names := []string{}
	for i := 0; i < ChannelCount; i++ {
		if c.Has(ChannelAt(i)) {
			names = append(names, fmt.Sprintf("CH%d", i+1))
		}
	}
	if c&^AllChannels != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint8(c&^AllChannels)))
	}
	return strings.Join(names, "|")
}

// ParseChannels parses a list like "ch1,ch3" or "CH1|CH3". Empty or "none" is ChannelNone.
func ParseChannels(s string) (Channels, error) {
	res := ChannelNone
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, f := range fields {
		f = strings.ToLower(f)
		if f == "none" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(f, "ch%d", &n); err != nil || n < 1 || n > ChannelCount {
			return ChannelNone, fmt.Errorf("unknown channel %q", f)
		}
		res = res.Union(ChannelAt(n - 1))
	}
	return res, nil
}

// MarshalYAML implements yaml.Marshaler
func (c Channels) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (c *Channels) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseChannels(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Event is a timestamped hardware edge
type Event struct {
	UTC     timebase.UtcTime
	Channel Channels
	ID      uint32
}
