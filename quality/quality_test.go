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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 6.0, mean([]float64{3, 5, 8, 8}))
	assert.Equal(t, 3.2, mean([]float64{1, 4, 0, 3, 8}))
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, variance([]float64{8, 8, 8, 8}))
	assert.Equal(t, 9.7, variance([]float64{1, 4, 0, 3, 8}))
}

func TestAbsMax(t *testing.T) {
	assert.Equal(t, 0.0, absMax(nil))
	assert.Equal(t, 7.0, absMax([]float64{1, -7, 3}))
}

func TestPrepareExpression(t *testing.T) {
	expr, err := prepareExpression("abs(mean(offset, 5)) + 1.0 * stddev(offset, 5) + max(rate, 2)", qualityVariables)
	require.NoError(t, err)

	parameters := map[string]interface{}{
		"offset": []float64{1, 4, 0, 3, 8},
		"rate":   []float64{2, -5, 100},
	}
	got, err := expr.Evaluate(parameters)
	require.NoError(t, err)
	assert.InDelta(t, 3.2+3.1144823004794873+5, got, 1e-9)
}

func TestPrepareExpressionWrongVar(t *testing.T) {
	_, err := prepareExpression("abs(mean(offset, 5)) + 1.0 * stddev(missing, 4)", qualityVariables)
	require.Error(t, err)
	// q only exists once quality is known
	_, err = prepareExpression("q < 10", qualityVariables)
	require.Error(t, err)
	_, err = prepareExpression("q < 10", eligibleVariables)
	require.NoError(t, err)
}

func TestPrepareExpressionBadSyntax(t *testing.T) {
	m := Math{Quality: "mean(offset", Eligible: "true"}
	require.ErrorContains(t, m.Prepare(), "evaluating quality")
	m = Math{Quality: "1", Eligible: "q <"}
	require.ErrorContains(t, m.Prepare(), "evaluating eligible")
}

func TestPrepareMathParameters(t *testing.T) {
	params := prepareMathParameters([]*DataPoint{
		{SyncErrorUS: 3, RatePPM: 12, Locked: true},
		{SyncErrorUS: -2, RatePPM: 10},
		{SyncErrorUS: 5, RatePPM: 15, Locked: true},
	})
	require.Equal(t, []float64{3, -2, 5}, params["offset"])
	require.Equal(t, []float64{12, 10, 15}, params["rate"])
	require.Equal(t, []float64{1, 0, 1}, params["locked"])
	require.Equal(t, []float64{2, -5}, params["ratechange"])
	require.Equal(t, []float64{2, 5}, params["ratechangeabs"])
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	require.Equal(t, 0, h.Len())
	require.Empty(t, h.Take(5))
	for i := 1; i <= 5; i++ {
		h.Push(&DataPoint{SyncErrorUS: float64(i)})
	}
	require.Equal(t, 3, h.Len())
	got := h.Take(5)
	require.Len(t, got, 3)
	require.Equal(t, 5.0, got[0].SyncErrorUS)
	require.Equal(t, 4.0, got[1].SyncErrorUS)
	require.Equal(t, 3.0, got[2].SyncErrorUS)
	require.Len(t, h.Take(1), 1)
}

func TestEvaluatorNotEnoughData(t *testing.T) {
	e, err := NewEvaluator(DefaultMath(), 10, nil)
	require.NoError(t, err)
	_, err = e.Evaluate()
	require.ErrorIs(t, err, ErrNotEnoughData)
	e.Observe(&DataPoint{})
	_, err = e.Evaluate()
	require.ErrorIs(t, err, ErrNotEnoughData)

	_, err = NewEvaluator(DefaultMath(), 1, nil)
	require.Error(t, err)
}

func TestEvaluatorEligible(t *testing.T) {
	e, err := NewEvaluator(DefaultMath(), 20, nil)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		e.Observe(&DataPoint{SyncErrorUS: 2, RatePPM: 1.5, Locked: true})
	}
	res, err := e.Evaluate()
	require.NoError(t, err)
	require.Equal(t, 20, res.Samples)
	require.InDelta(t, 2.0, res.QualityUS, 1e-9)
	require.True(t, res.Eligible)

	// one recent unlocked sample is enough to lose eligibility
	e.Observe(&DataPoint{SyncErrorUS: 20_000, RatePPM: 1.5})
	res, err = e.Evaluate()
	require.NoError(t, err)
	require.False(t, res.Eligible)
	require.Greater(t, res.QualityUS, 1000.0)
}

func TestEvaluatorTypeChecks(t *testing.T) {
	e, err := NewEvaluator(Math{Quality: "mean(offset, 5) > 1", Eligible: "true"}, 5, nil)
	require.NoError(t, err)
	e.Observe(&DataPoint{})
	e.Observe(&DataPoint{})
	_, err = e.Evaluate()
	require.ErrorContains(t, err, "quality must be a number")

	e, err = NewEvaluator(Math{Quality: "1", Eligible: "q + 1"}, 5, nil)
	require.NoError(t, err)
	e.Observe(&DataPoint{})
	e.Observe(&DataPoint{})
	_, err = e.Evaluate()
	require.ErrorContains(t, err, "eligible must be a boolean")
}

func TestEvaluatorLogsCSV(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewEvaluator(DefaultMath(), 5, NewCSVLogger(&buf))
	require.NoError(t, err)
	e.Observe(&DataPoint{SyncErrorUS: 1, RatePPM: 2, Locked: true})
	e.Observe(&DataPoint{SyncErrorUS: 3, RatePPM: 4, Locked: true})
	_, err = e.Evaluate()
	require.NoError(t, err)
	_, err = e.Evaluate()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "offset,offset_mean,offset_stddev,rate,rate_mean,rate_stddev,quality,eligible", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "3,2,1.4142135623730951,4,3,1.4142135623730951,"))
	require.True(t, strings.HasSuffix(lines[1], ",true"))
}
