package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
)

// Collectors groups the callback's Prometheus collectors.
type Collectors struct {
	// Notifications counts every admitted notification by recap category.
	Notifications *prometheus.CounterVec
	// Logged counts events retained in the event log, by kind.
	Logged *prometheus.CounterVec
	// Filtered counts events hidden by the visibility policy, by kind.
	Filtered *prometheus.CounterVec
	// ProtocolViolations counts calls rejected by the run state machine.
	ProtocolViolations *prometheus.CounterVec
	// Hosts tracks the number of hosts known to the current run.
	Hosts prometheus.Gauge
	// ReportWriteDuration observes how long the final document write took.
	ReportWriteDuration prometheus.Histogram
	// ReportsWritten counts report emissions by result ("ok", "sink_error").
	ReportsWritten *prometheus.CounterVec
}

// NewCollectors builds the collectors and registers them with reg. A nil
// registry yields working but unexported collectors.
func NewCollectors(reg *prometheus.Registry, log cdlog.Logger) *Collectors {
	c := &Collectors{
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "changed_debug_notifications_total", Help: "Task outcomes admitted, by recap category."},
			[]string{"category"},
		),
		Logged: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "changed_debug_events_logged_total", Help: "Events retained in the report event log, by kind."},
			[]string{"kind"},
		),
		Filtered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "changed_debug_events_filtered_total", Help: "Events hidden by the visibility policy, by kind."},
			[]string{"kind"},
		),
		ProtocolViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "changed_debug_protocol_violations_total", Help: "Calls rejected because the run was in the wrong state."},
			[]string{"operation"},
		),
		Hosts: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "changed_debug_hosts", Help: "Hosts known to the current run."},
		),
		ReportWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "changed_debug_report_write_duration_seconds", Help: "Duration of the final report write.", Buckets: prometheus.DefBuckets},
		),
		ReportsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "changed_debug_reports_written_total", Help: "Report emissions by result."},
			[]string{"result"},
		),
	}
	if reg == nil {
		return c
	}

	c.Notifications = register(reg, c.Notifications, log)
	c.Logged = register(reg, c.Logged, log)
	c.Filtered = register(reg, c.Filtered, log)
	c.ProtocolViolations = register(reg, c.ProtocolViolations, log)
	c.Hosts = register(reg, c.Hosts, log)
	c.ReportWriteDuration = register(reg, c.ReportWriteDuration, log)
	c.ReportsWritten = register(reg, c.ReportsWritten, log)
	return c
}

// register adds collector to reg. When an identical collector is already
// registered, the existing one is returned so every recorder sharing reg
// updates the exported series.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T, log cdlog.Logger) T {
	err := reg.Register(collector)
	if err == nil {
		return collector
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			if log != nil {
				log.Debugf("Reusing registered metric collector: %v", err)
			}
			return existing
		}
	}
	if log != nil {
		log.Warnf("Failed to register metric collector: %v", err)
	}
	return collector
}
