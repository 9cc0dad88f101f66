package reader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scan counters shared by every Reader created with
// WithMetrics. Create it once per registry.
type Metrics struct {
	Batches         prometheus.Counter
	Rows            prometheus.Counter
	RowGroupsRead   prometheus.Counter
	RowGroupsPruned prometheus.Counter
	Errors          prometheus.Counter
}

// NewMetrics creates the scan counters and registers them with reg. A nil
// reg creates unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Batches: f.NewCounter(prometheus.CounterOpts{
			Name: "lakesoul_reader_batches_total",
			Help: "Record batches yielded by scans",
		}),
		Rows: f.NewCounter(prometheus.CounterOpts{
			Name: "lakesoul_reader_rows_total",
			Help: "Rows yielded by scans after filtering",
		}),
		RowGroupsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "lakesoul_reader_row_groups_read_total",
			Help: "Parquet row groups selected for decoding",
		}),
		RowGroupsPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "lakesoul_reader_row_groups_pruned_total",
			Help: "Parquet row groups skipped using column statistics",
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "lakesoul_reader_errors_total",
			Help: "Scans that failed",
		}),
	}
}

func (m *Metrics) batch(rows int64) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.Rows.Add(float64(rows))
}

func (m *Metrics) rowGroups(read, pruned int) {
	if m == nil {
		return
	}
	m.RowGroupsRead.Add(float64(read))
	m.RowGroupsPruned.Add(float64(pruned))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}
