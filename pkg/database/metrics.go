package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports pgxpool connection gauges.
type PoolStatsCollector struct {
	pool  *pgxpool.Pool
	store string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for pool, labelled with the store name.
func NewPoolStatsCollector(pool *pgxpool.Pool, store string) *PoolStatsCollector {
	labels := []string{"store"}
	return &PoolStatsCollector{
		pool:     pool,
		store:    store,
		acquired: prometheus.NewDesc("db_pool_acquired_connections", "Number of currently acquired connections", labels, nil),
		idle:     prometheus.NewDesc("db_pool_idle_connections", "Number of currently idle connections", labels, nil),
		total:    prometheus.NewDesc("db_pool_total_connections", "Total number of connections in the pool", labels, nil),
		max:      prometheus.NewDesc("db_pool_max_connections", "Maximum number of connections allowed", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(stat.MaxConns()), c.store)
}

// RegisterPoolMetrics registers a collector for pool with reg. Registering
// the same store twice is not an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, store string) error {
	if err := reg.Register(NewPoolStatsCollector(pool, store)); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
