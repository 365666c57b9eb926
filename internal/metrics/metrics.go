// Package metrics periodically exports a status snapshot (hashrate,
// miners, pending shares) to InfluxDB, enriched with process resource
// samples, the way go-ethereum-family nodes export their own metrics:
// github.com/influxdata/influxdb's v1 client for the export itself and
// github.com/shirou/gopsutil for process CPU/RSS sampling. No host-level
// resources (such as free disk space) are sampled.
package metrics

import (
	"os"
	"time"

	"github.com/fjl/memsize"
	influxclient "github.com/influxdata/influxdb/client/v2"
	"github.com/shirou/gopsutil/process"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// Config carries the InfluxDB export target; Addr == "" disables export.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Exporter periodically writes a coordinator status snapshot to InfluxDB.
type Exporter struct {
	cfg    Config
	client influxclient.Client
	proc   *process.Process
	log    *log.Logger
}

// New connects the InfluxDB client eagerly so configuration mistakes
// surface at startup rather than on the first tick.
func New(cfg Config) (*Exporter, error) {
	client, err := influxclient.NewHTTPClient(influxclient.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Exporter{cfg: cfg, client: client, proc: proc, log: log.New("component", "metrics")}, nil
}

// Report writes one status snapshot point, tagged with the pool name,
// alongside a process-resource point sampled from gopsutil.
func (e *Exporter) Report(status coordinator.StatusMessage) {
	bp, err := influxclient.NewBatchPoints(influxclient.BatchPointsConfig{Database: e.cfg.Database})
	if err != nil {
		e.log.Warn("metrics: creating batch", "err", err)
		return
	}

	fields := map[string]interface{}{
		"hashRate":      status.HashRate,
		"miners":        status.Miners,
		"sharesPending": status.SharesPending,
		"banCount":      status.BanCount,
	}
	pt, err := influxclient.NewPoint("pool_status", map[string]string{"pool": status.Name}, fields, time.Now())
	if err != nil {
		e.log.Warn("metrics: building point", "err", err)
		return
	}
	bp.AddPoint(pt)

	if cpuPct, err := e.proc.CPUPercent(); err == nil {
		if mem, err := e.proc.MemoryInfo(); err == nil {
			procPt, err := influxclient.NewPoint("pool_process", map[string]string{"pool": status.Name}, map[string]interface{}{
				"cpuPercent": cpuPct,
				"rssBytes":   int64(mem.RSS),
			}, time.Now())
			if err == nil {
				bp.AddPoint(procPt)
			}
		}
	}

	if err := e.client.Write(bp); err != nil {
		e.log.Warn("metrics: writing to influxdb", "err", err)
	}

	e.logMemsize(status)
}

// logMemsize reports the in-memory footprint of one status snapshot at
// debug level, the way go-ethereum's admin_memStats surfaces object-graph
// sizes for operator diagnosis; it is not exported to InfluxDB since it
// costs a full graph walk.
func (e *Exporter) logMemsize(status coordinator.StatusMessage) {
	sizes := memsize.Scan(&status)
	e.log.Debug("status snapshot memsize", "bytes", sizes.Total)
}

// Close releases the InfluxDB client's connection.
func (e *Exporter) Close() error { return e.client.Close() }
