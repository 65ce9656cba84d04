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
Package quality evaluates how good the synchronized UTC is.

The history of sync errors, rate corrections and lock states is fed to two
user supplied govaluate expressions: one estimating the UTC error, the other
deciding whether UTC is good enough to be served to others (for instance
when this node may act as a time sync master).
*/
package quality

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrNotEnoughData is returned when history is too short to evaluate
var ErrNotEnoughData = errors.New("not enough data points")

// Result of an evaluation
type Result struct {
	QualityUS float64
	Eligible  bool
	Samples   int
}

// Evaluator keeps history and evaluates expressions over it
type Evaluator struct {
	math    *Math
	history *History
	size    int
	l       Logger
}

// NewEvaluator prepares m and creates an evaluator keeping size samples.
// l may be nil.
func NewEvaluator(m Math, size int, l Logger) (*Evaluator, error) {
	if size < 2 {
		return nil, fmt.Errorf("history size must be at least 2, got %d", size)
	}
	if err := m.Prepare(); err != nil {
		return nil, err
	}
	return &Evaluator{math: &m, history: NewHistory(size), size: size, l: l}, nil
}

// Observe records a data point
func (e *Evaluator) Observe(dp *DataPoint) {
	e.history.Push(dp)
}

// Evaluate runs both expressions over the history
func (e *Evaluator) Evaluate() (*Result, error) {
	lastN := e.history.Take(e.size)
	if len(lastN) < 2 {
		return nil, fmt.Errorf("%w: want at least 2, got %d", ErrNotEnoughData, len(lastN))
	}
	params := prepareMathParameters(lastN)
	qRaw, err := e.math.qualityExpr.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("evaluating quality: %w", err)
	}
	q, ok := qRaw.(float64)
	if !ok {
		return nil, fmt.Errorf("quality must be a number, got %v", qRaw)
	}
	params["q"] = q
	eRaw, err := e.math.eligibleExpr.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("evaluating eligible: %w", err)
	}
	eligible, ok := eRaw.(bool)
	if !ok {
		return nil, fmt.Errorf("eligible must be a boolean, got %v", eRaw)
	}

	if e.l != nil {
		offsets := params["offset"].([]float64)
		rates := params["rate"].([]float64)
		sample := &LogSample{
			SyncErrorUS:       offsets[0],
			SyncErrorMeanUS:   mean(offsets),
			SyncErrorStddevUS: stddev(offsets),
			RatePPM:           rates[0],
			RateMeanPPM:       mean(rates),
			RateStddevPPM:     stddev(rates),
			QualityUS:         q,
			Eligible:          eligible,
		}
		if err := e.l.Log(sample); err != nil {
			log.Errorf("failed to log sample: %v", err)
		}
	}
	return &Result{QualityUS: q, Eligible: eligible, Samples: len(lastN)}, nil
}
