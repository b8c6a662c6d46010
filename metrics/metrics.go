// Copyright 2024 The ledger Authors
// This file is part of the ledger library.
//
// The ledger library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics registers the handful of counters and gauges this
// node exposes, all living in the go-metrics default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	ChainLength  = gometrics.NewRegisteredGauge("chain/length", gometrics.DefaultRegistry)
	MempoolSize  = gometrics.NewRegisteredGauge("mempool/size", gometrics.DefaultRegistry)
	BlocksMined  = gometrics.NewRegisteredCounter("blocks/mined", gometrics.DefaultRegistry)
	TxGossiped   = gometrics.NewRegisteredCounter("tx/gossiped", gometrics.DefaultRegistry)
	SyncRounds   = gometrics.NewRegisteredCounter("sync/rounds", gometrics.DefaultRegistry)
	BlocksOrphan = gometrics.NewRegisteredCounter("blocks/orphaned", gometrics.DefaultRegistry)
)

// prometheusBridge mirrors the rcrowley/go-metrics registry this
// package's counters live in into native prometheus collectors.
type prometheusBridge struct {
	gauges   map[string]prometheus.Gauge
	counters map[string]prometheus.Counter
}

func newPrometheusBridge(namespace string) *prometheusBridge {
	b := &prometheusBridge{
		gauges:   make(map[string]prometheus.Gauge),
		counters: make(map[string]prometheus.Counter),
	}
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		promName := sanitize(name)
		switch i.(type) {
		case gometrics.Gauge:
			b.gauges[name] = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: promName})
			prometheus.MustRegister(b.gauges[name])
		case gometrics.Counter:
			b.counters[name] = prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: promName})
			prometheus.MustRegister(b.counters[name])
		}
	})
	return b
}

func (b *prometheusBridge) sync() {
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case gometrics.Gauge:
			if g, ok := b.gauges[name]; ok {
				g.Set(float64(m.Value()))
			}
		case gometrics.Counter:
			if c, ok := b.counters[name]; ok {
				c.Add(float64(m.Count()))
				m.Clear()
			}
		}
	})
}

func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '/' || c == '.' || c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}

// StartPrometheusBridge registers every metric currently in the
// default registry with prometheus and periodically copies fresh
// values across until stop is closed. Call before serving
// promhttp.Handler().
func StartPrometheusBridge(namespace string, interval time.Duration, stop <-chan struct{}) {
	bridge := newPrometheusBridge(namespace)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bridge.sync()
			case <-stop:
				return
			}
		}
	}()
}
