// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/internal/provider"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks  []Sink
	store  provider.Provider
	logger *slog.Logger
	region string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithStore records every dispatched alert in the result store.
func WithStore(p provider.Provider) Option {
	return func(d *Dispatcher) { d.store = p }
}

// WithRegion sets the AWS region used by SNS and S3 sinks.
func WithRegion(region string) Option {
	return func(d *Dispatcher) { d.region = region }
}

// WithSinks appends pre-built sinks.
func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	for _, cfg := range configs {
		sink, err := d.newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends an alert to all configured sinks. Sink failures are
// logged and counted but never returned: alerting must not change a
// scenario's outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	if d.store != nil {
		if err := d.store.PutAlert(ctx, alert); err != nil {
			d.logger.Warn("failed to record alert", "scenario", alert.Scenario, "error", err)
		}
	}
	for _, sink := range d.sinks {
		attrs := metric.WithAttributes(attribute.String("sink", sink.Name()))
		if err := sink.Send(ctx, alert); err != nil {
			metrics.AlertsFailed.Add(ctx, 1, attrs)
			d.logger.Error("alert delivery failed", "sink", sink.Name(), "scenario", alert.Scenario, "error", err)
			continue
		}
		metrics.AlertsDispatched.Add(ctx, 1, attrs)
	}
}

// Sinks returns the configured sink names in dispatch order.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (d *Dispatcher) newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertSNS:
		return NewSNSSink(cfg.TopicARN, WithSNSRegion(d.region))
	case types.AlertS3:
		return NewS3Sink(cfg.Bucket, cfg.Prefix, WithS3Region(d.region))
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
