package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hierarchyExtractRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierarchy",
		Subsystem: "extract",
		Name:      "runs_total",
		Help:      "Total number of hierarchy extraction runs broken down by id strategy and result.",
	}, []string{"strategy", "result"})

	hierarchyExtractRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hierarchy",
		Subsystem: "extract",
		Name:      "rows",
		Help:      "Row count produced by the most recent applied extraction per entity.",
	}, []string{"entity"})
)

func recordExtractRun(strategy IDStrategy, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	hierarchyExtractRuns.WithLabelValues(string(strategy), result).Inc()
}

func recordExtractRows(entity string, rows int64) {
	hierarchyExtractRows.WithLabelValues(entity).Set(float64(rows))
}
