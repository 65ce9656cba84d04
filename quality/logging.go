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

package quality

import (
	"encoding/csv"
	"io"
	"strconv"
)

// LogSample has all the values we may want to log after evaluation
type LogSample struct {
	SyncErrorUS       float64
	SyncErrorMeanUS   float64
	SyncErrorStddevUS float64
	RatePPM           float64
	RateMeanPPM       float64
	RateStddevPPM     float64
	QualityUS         float64
	Eligible          bool
}

var header = []string{
	"offset",
	"offset_mean",
	"offset_stddev",
	"rate",
	"rate_mean",
	"rate_stddev",
	"quality",
	"eligible",
}

// CSVRecords returns all data from this sample as CSV. Must by synced with `header` variable.
func (s *LogSample) CSVRecords() []string {
	return []string{
		strconv.FormatFloat(s.SyncErrorUS, 'f', -1, 64),
		strconv.FormatFloat(s.SyncErrorMeanUS, 'f', -1, 64),
		strconv.FormatFloat(s.SyncErrorStddevUS, 'f', -1, 64),
		strconv.FormatFloat(s.RatePPM, 'f', -1, 64),
		strconv.FormatFloat(s.RateMeanPPM, 'f', -1, 64),
		strconv.FormatFloat(s.RateStddevPPM, 'f', -1, 64),
		strconv.FormatFloat(s.QualityUS, 'f', -1, 64),
		strconv.FormatBool(s.Eligible),
	}
}

// Logger is something that can store LogSample somewhere
type Logger interface {
	Log(*LogSample) error
}

// CSVLogger logs Sample as CSV into given writer
type CSVLogger struct {
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVLogger returns new CSVLogger
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{
		csvwriter: csv.NewWriter(w),
	}
}

// Log implements Logger interface
func (l *CSVLogger) Log(s *LogSample) error {
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	if err := l.csvwriter.Write(s.CSVRecords()); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return l.csvwriter.Error()
}
