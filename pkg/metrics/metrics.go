package metrics

import (
	"sync/atomic"

	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
)

// Metrics defines the interface for collecting and reporting synchronization statistics.
type Metrics interface {
	AddEntriesAdded(n int64)
	AddEntriesModified(n int64)
	AddEntriesRemoved(n int64)
	AddEntriesExcluded(n int64)
	AddEntriesUpToDate(n int64)
	AddBytesWritten(n int64)
	Log()
}

// SyncMetrics holds the atomic counters for tracking a sync run's progress.
// It is the concrete implementation of the Metrics interface.
type SyncMetrics struct {
	EntriesAdded    atomic.Int64
	EntriesModified atomic.Int64
	EntriesRemoved  atomic.Int64
	EntriesExcluded atomic.Int64
	EntriesUpToDate atomic.Int64
	BytesWritten    atomic.Int64
}

func (m *SyncMetrics) AddEntriesAdded(n int64)    { m.EntriesAdded.Add(n) }
func (m *SyncMetrics) AddEntriesModified(n int64) { m.EntriesModified.Add(n) }
func (m *SyncMetrics) AddEntriesRemoved(n int64)  { m.EntriesRemoved.Add(n) }
func (m *SyncMetrics) AddEntriesExcluded(n int64) { m.EntriesExcluded.Add(n) }
func (m *SyncMetrics) AddEntriesUpToDate(n int64) { m.EntriesUpToDate.Add(n) }
func (m *SyncMetrics) AddBytesWritten(n int64)    { m.BytesWritten.Add(n) }

// Log prints a summary of the sync run.
func (m *SyncMetrics) Log() {
	plog.Info("SUM",
		"added", m.EntriesAdded.Load(),
		"modified", m.EntriesModified.Load(),
		"removed", m.EntriesRemoved.Load(),
		"excluded", m.EntriesExcluded.Load(),
		"upToDate", m.EntriesUpToDate.Load(),
		"bytesWritten", m.BytesWritten.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesAdded(n int64)    {}
func (m *NoopMetrics) AddEntriesModified(n int64) {}
func (m *NoopMetrics) AddEntriesRemoved(n int64)  {}
func (m *NoopMetrics) AddEntriesExcluded(n int64) {}
func (m *NoopMetrics) AddEntriesUpToDate(n int64) {}
func (m *NoopMetrics) AddBytesWritten(n int64)    {}
func (m *NoopMetrics) Log()                       {}

// Statically assert that our types implement the interface.
var _ Metrics = (*SyncMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
