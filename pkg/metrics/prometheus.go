package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the custody service.
type Metrics struct {
	ShipmentsCreated   prometheus.Counter
	SegmentTransitions *prometheus.CounterVec
	InventoryConflicts prometheus.Counter
	CreateShipmentTime prometheus.Histogram
	ErrorsCount        *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ShipmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_created_total",
			Help:      "The total number of shipments created",
		}),
		SegmentTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_transitions_total",
			Help:      "Segment custody transitions by action",
		}, []string{"action"}),
		InventoryConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_conflicts_total",
			Help:      "Shipment creations rejected for insufficient inventory",
		}),
		CreateShipmentTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "create_shipment_seconds",
			Help:      "Time taken to plan and commit a shipment",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Request errors by mapped error code",
		}, []string{"code"}),
	}
}
