package metrics

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	bolt "go.etcd.io/bbolt"
)

// SessionStats contains session counts for metrics
type SessionStats struct {
	Total          int64
	Seeded         int64
	JournalPending int64
}

// SessionStatsProvider provides session counts for metrics
type SessionStatsProvider interface {
	SessionStats(ctx context.Context) (*SessionStats, error)
}

var bucketMetrics = []byte("metrics")

// ShadowCounters stores counter values for persistence
type ShadowCounters struct {
	Operations      map[string]float64 `json:"operations"`
	RowsInserted    map[string]float64 `json:"rows_inserted"`
	RowsDeleted     map[string]float64 `json:"rows_deleted"`
	SessionsCleaned float64            `json:"sessions_cleaned"`
}

// Collector updates session and system gauges and, when given a BoltDB
// handle, keeps seed counters across restarts.
type Collector struct {
	db            *bolt.DB
	metrics       *Metrics
	sessions      SessionStatsProvider
	flushInterval time.Duration
	startTime     time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a new metrics collector. db may be nil.
func NewCollector(db *bolt.DB, m *Metrics, sessions SessionStatsProvider, flushInterval time.Duration) (*Collector, error) {
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	if db != nil {
		err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketMetrics)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	c := &Collector{
		db:            db,
		metrics:       m,
		sessions:      sessions,
		flushInterval: flushInterval,
		startTime:     time.Now(),
		stopCh: make(chan struct{}),
	}

	if err := c.loadCounters(); err != nil {
		return nil, err
	}

	return c, nil
}

// Start begins the collector background tasks
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.persistLoop(ctx)
	go c.updateGauges(ctx)
}

// Stop stops the collector and persists final values
func (c *Collector) Stop() error {
	close(c.stopCh)
	c.wg.Wait()
	return c.persistCounters()
}

// loadCounters restores persisted counter values
func (c *Collector) loadCounters() error {
	if c.db == nil {
		return nil
	}

	return c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMetrics)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte("counters"))
		if data == nil {
			return nil
		}

		var shadow ShadowCounters
		if err := json.Unmarshal(data, &shadow); err != nil {
			return nil // Skip invalid data
		}

		for k, v := range shadow.Operations {
			operation, status := splitLabelKey(k)
			c.metrics.OperationsTotal.WithLabelValues(operation, status).Add(v)
		}
		for k, v := range shadow.RowsInserted {
			c.metrics.RowsInsertedTotal.WithLabelValues(k).Add(v)
		}
		for k, v := range shadow.RowsDeleted {
			c.metrics.RowsDeletedTotal.WithLabelValues(k).Add(v)
		}
		c.metrics.SessionsCleanedTotal.Add(shadow.SessionsCleaned)

		return nil
	})
}

// persistCounters saves counter values to BoltDB
func (c *Collector) persistCounters() error {
	if c.db == nil {
		return nil
	}

	shadow, err := c.snapshot()
	if err != nil {
		return err
	}

	data, err := json.Marshal(shadow)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMetrics)
		if bucket == nil {
			return nil
		}
		return bucket.Put([]byte("counters"), data)
	})
}

// persistLoop periodically persists counter values
func (c *Collector) persistLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.persistCounters()
		}
	}
}

// updateGauges periodically refreshes session and system gauges
func (c *Collector) updateGauges(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// collect reads current session and process state
func (c *Collector) collect(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.sessions != nil {
		stats, err := c.sessions.SessionStats(ctx)
		if err == nil {
			c.metrics.SessionsTotal.Set(float64(stats.Total))
			c.metrics.SessionsSeeded.Set(float64(stats.Seeded))
			c.metrics.JournalPending.Set(float64(stats.JournalPending))
		}
	}
}

// snapshot reads the persisted counters back out of the registry
func (c *Collector) snapshot() (ShadowCounters, error) {
	shadow := ShadowCounters{
		Operations:   make(map[string]float64),
		RowsInserted: make(map[string]float64),
		RowsDeleted:  make(map[string]float64),
	}

	families, err := c.metrics.Registry().Gather()
	if err != nil {
		return shadow, err
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := labelValues(m)
			value := m.GetCounter().GetValue()

			switch mf.GetName() {
			case "mailseed_operations_total":
				shadow.Operations[makeLabelKey(labels["operation"], labels["status"])] = value
			case "mailseed_rows_inserted_total":
				shadow.RowsInserted[labels["table"]] = value
			case "mailseed_rows_deleted_total":
				shadow.RowsDeleted[labels["table"]] = value
			case "mailseed_sessions_cleaned_total":
				shadow.SessionsCleaned = value
			}
		}
	}

	return shadow, nil
}

func labelValues(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// Helper functions for label key serialization
func makeLabelKey(a, b string) string {
	return a + "|" + b
}

func splitLabelKey(key string) (string, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
