package subscription

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	snapshotCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siteright",
		Subsystem: "live",
		Name:      "snapshots_total",
		Help:      "Collection snapshots broadcast to subscribers",
	}, []string{"collection", "outcome"})

	subscriberGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "siteright",
		Subsystem: "live",
		Name:      "subscribers",
		Help:      "Currently attached live subscribers",
	}, []string{"collection"})
)

func initMetrics() {
	metricsOnce.Do(func() {
		for _, collector := range []prometheus.Collector{snapshotCounter, subscriberGauge} {
			if err := prometheus.Register(collector); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}
