package lifecycle

import (
	"context"
	"log/slog"

	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Collector turns a stream of group snapshots into the filtered transition
// record of a single tracked instance.
type Collector struct {
	instanceID string
	ignore     IgnoreSet
	record     *Record
	logger     *slog.Logger
}

// NewCollector creates a Collector appending to record. A nil record starts
// a fresh one.
func NewCollector(instanceID string, ignore IgnoreSet, record *Record, logger *slog.Logger) *Collector {
	if record == nil {
		record = NewRecord()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		instanceID: instanceID,
		ignore:     ignore,
		record:     record,
		logger:     logger,
	}
}

// Observe folds one snapshot into the record. An instance missing from the
// snapshot (e.g. mid-replacement) and ignored states leave the record
// untouched; otherwise the state is appended when it differs from the last
// entry. Observe does no I/O and never blocks.
func (c *Collector) Observe(snapshot types.GroupSnapshot) {
	metrics.SnapshotsObserved.Add(context.Background(), 1)

	state, ok := snapshot.Lookup(c.instanceID)
	if !ok {
		return
	}
	if c.ignore.Contains(state) {
		return
	}
	if c.record.appendIfChanged(state) {
		metrics.TransitionsRecorded.Add(context.Background(), 1)
		c.logger.Info("ASG change detected", "group", snapshot.GroupName, "instance", c.instanceID, "state", state)
	}
}

// Record returns the record being built.
func (c *Collector) Record() *Record { return c.record }
