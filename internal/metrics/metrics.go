// Package metrics exposes runtime counters via OpenTelemetry instruments.
//
// Instruments are created against the global meter provider, so they become
// live once telemetry.Setup installs an SDK provider and are no-ops otherwise.
package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dwsmith1983/standbyprobe"

var meter = otel.Meter(instrumentationName)

var (
	StatePolls          = counter("standbyprobe.state.polls", "Lifecycle state fetches issued by the poller")
	StateWaitTimeouts   = counter("standbyprobe.state.wait_timeouts", "State waits that exhausted their budget")
	TransitionsRecorded = counter("standbyprobe.transitions.recorded", "Lifecycle transitions appended to a record")
	SnapshotsObserved   = counter("standbyprobe.snapshots.observed", "Group snapshots fed to a collector")
	ExecutionPolls      = counter("standbyprobe.execution.polls", "Automation execution status checks")
	ScenariosPassed     = counter("standbyprobe.scenarios.passed", "Scenario runs that passed")
	ScenariosFailed     = counter("standbyprobe.scenarios.failed", "Scenario runs that failed")
	BreakerTrips        = counter("standbyprobe.breaker.trips", "Describe circuit breaker transitions to open")
	AlertsDispatched    = counter("standbyprobe.alerts.dispatched", "Alerts delivered to a sink")
	AlertsFailed        = counter("standbyprobe.alerts.failed", "Alerts a sink failed to deliver")

	ScenarioDuration = histogram("standbyprobe.scenario.duration", "Wall time of a scenario run", "s")
)

func counter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

func histogram(name, desc, unit string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		otel.Handle(err)
	}
	return h
}
