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
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp describes what can be used in quality expressions
const MathHelp = `When composing the quality and eligible formulas, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (list of last sync errors, in us, most recent first)
  rate (list of last rate corrections, in PPM)
  ratechange (list of last changes in rate correction)
  ratechangeabs (list of last changes in rate correction, abs values)
  locked (list of last lock states, 1 if locked, 0 otherwise)
  q (result of the quality formula, only in the eligible formula)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of the 'number' most recent values
  variance(values, number) - variance of the 'number' most recent values
  stddev(values, number) - standard deviation of the 'number' most recent values
  max(values, number) - max of absolute values of the 'number' most recent values`

const (
	// MathDefaultHistory is a default number of samples to keep
	MathDefaultHistory = 60
	// MathDefaultQuality is a default formula estimating UTC error in us
	MathDefaultQuality = "abs(mean(offset, 60)) + 2.0 * stddev(offset, 60)"
	// MathDefaultEligible is a default formula deciding whether UTC is good enough to be served to others
	MathDefaultEligible = "mean(locked, 10) == 1 && q < 1000"
)

// Math stores quality expressions in two forms: string and parsed
type Math struct {
	Quality  string `yaml:"quality"`  // estimated UTC error, us
	Eligible string `yaml:"eligible"` // whether UTC can be served to others

	qualityExpr  *govaluate.EvaluableExpression
	eligibleExpr *govaluate.EvaluableExpression
}

// DefaultMath returns default expressions
func DefaultMath() Math {
	return Math{Quality: MathDefaultQuality, Eligible: MathDefaultEligible}
}

// Prepare will prepare all math expressions
func (m *Math) Prepare() error {
	var err error
	m.qualityExpr, err = prepareExpression(m.Quality, qualityVariables)
	if err != nil {
		return fmt.Errorf("evaluating quality: %w", err)
	}
	m.eligibleExpr, err = prepareExpression(m.Eligible, eligibleVariables)
	if err != nil {
		return fmt.Errorf("evaluating eligible: %w", err)
	}
	return nil
}

func summary(input []float64) *welford.Stats {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s
}

func mean(input []float64) float64 {
	return summary(input).Mean()
}

func variance(input []float64) float64 {
	return summary(input).Variance()
}

func stddev(input []float64) float64 {
	return summary(input).Stddev()
}

func absMax(input []float64) float64 {
	var m float64
	for _, v := range input {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

var qualityVariables = []string{
	"offset",
	"rate",
	"ratechange",
	"ratechangeabs",
	"locked",
}

var eligibleVariables = append([]string{"q"}, qualityVariables...)

func isSupportedVar(varName string, supported []string) bool {
	for _, v := range supported {
		if v == varName {
			return true
		}
	}
	return false
}

// listFunction wraps f into an expression function taking a list and a number of samples
func listFunction(name string, f func([]float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: wrong number of arguments: want 2, got %d", name, len(args))
		}
		vals, ok := args[0].([]float64)
		if !ok {
			return nil, fmt.Errorf("%s: first argument must be a list", name)
		}
		n, ok := args[1].(float64)
		if !ok {
			return nil, fmt.Errorf("%s: second argument must be a number", name)
		}
		nSamples := int(n)
		if len(vals) < nSamples {
			return f(vals), nil
		}
		return f(vals[:nSamples]), nil
	}
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument must be a number")
		}
		return math.Abs(val), nil
	},
	"mean":     listFunction("mean", mean),
	"variance": listFunction("variance", variance),
	"stddev":   listFunction("stddev", stddev),
	"max":      listFunction("max", absMax),
}

func prepareExpression(exprStr string, supported []string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v, supported) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func prepareMathParameters(lastN []*DataPoint) map[string]interface{} {
	size := len(lastN)
	offsets := make([]float64, size)
	rates := make([]float64, size)
	locked := make([]float64, size)
	changes := []float64{}
	changesAbs := []float64{}
	for i, dp := range lastN {
		offsets[i] = dp.SyncErrorUS
		rates[i] = dp.RatePPM
		if dp.Locked {
			locked[i] = 1
		}
		if i != 0 {
			// most recent first
			change := lastN[i-1].RatePPM - dp.RatePPM
			changes = append(changes, change)
			changesAbs = append(changesAbs, math.Abs(change))
		}
	}
	return map[string]interface{}{
		"offset":        offsets,
		"rate":          rates,
		"ratechange":    changes,
		"ratechangeabs": changesAbs,
		"locked":        locked,
	}
}
