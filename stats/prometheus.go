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

package stats

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// CounterSource is anything providing flat counters
type CounterSource interface {
	GetCounters() map[string]int64
}

// PrometheusExporter publishes counters of a source as Prometheus gauges
type PrometheusExporter struct {
	sync.Mutex
	registry *prometheus.Registry
	source   CounterSource
	prefix   string
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(source CounterSource, prefix string) *PrometheusExporter {
	return &PrometheusExporter{registry: prometheus.NewRegistry(), source: source, prefix: prefix}
}

// Scrape copies current counters into gauges
func (e *PrometheusExporter) Scrape() {
	e.Lock()
	defer e.Unlock()
	for mkey, mval := range e.source.GetCounters() {
		promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: flattenKey(e.prefix + mkey),
			Help: mkey,
		})
		if err := e.registry.Register(promCollector); err != nil {
			are := prometheus.AlreadyRegisteredError{}
			if errors.As(err, &are) {
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s %v", mkey, err)
				continue
			}
		}
		promCollector.Set(float64(mval))
	}
}

// Handler scrapes on every request and serves the registry
func (e *PrometheusExporter) Handler() http.Handler {
	h := promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.Scrape()
		h.ServeHTTP(w, r)
	})
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
