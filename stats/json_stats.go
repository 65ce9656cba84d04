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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

const (
	contentType     = "Content-Type"
	applicationJSON = "application/json"
)

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	Stats
	sys ProcessStats
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	return &JSONStats{Stats: *NewStats()}
}

// CollectSysStats updates counters with process and runtime stats
func (s *JSONStats) CollectSysStats(interval time.Duration) error {
	procStats, err := s.sys.Collect(interval)
	if err != nil {
		return err
	}
	for k, v := range procStats {
		s.SetCounter(k, int64(v))
	}
	return nil
}

// Handler returns http handler serving status on / and counters on /counters
func (s *JSONStats) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRootRequest)
	mux.HandleFunc("/counters", s.handleCountersRequest)
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(contentType, applicationJSON)
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// handleRootRequest replies with engine status
func (s *JSONStats) handleRootRequest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetStatus())
}

// handleCountersRequest replies with all counters
func (s *JSONStats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetCounters())
}

// Serve serves h on addr until ctx is done, with at most maxConns concurrent connections
func Serve(ctx context.Context, addr string, maxConns int, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warningf("stopping http server: %v", err)
		}
	}()
	log.Infof("Starting http json server on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func fetch(url string, v interface{}) error {
	c := http.Client{
		Timeout: time.Second * 2,
	}
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// FetchStatus returns engine status fetched from the url
func FetchStatus(url string) (*Status, error) {
	s := &Status{}
	if err := fetch(url, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FetchCounters returns counters map fetched from the url
func FetchCounters(url string) (map[string]int64, error) {
	counters := map[string]int64{}
	err := fetch(fmt.Sprintf("%s/counters", url), &counters)
	return counters, err
}
