package invoke

import (
	"context"
	"time"
)

// Monitor is the periodic scan (§2, 10% share) driving
// NotifyInvocationTimeout and CheckBackupTimeout across every live
// invocation at a fixed cadence, so no Invocation needs a per-entry timer
// (§9 design note). The two cadences are independently configurable
// (§4.5: "cadence independent of call-timeout").
//
// Grounded on the teacher's registry-scavenge loop (eventloop's
// Loop.tick calling registry.Scavenge), generalized from "garbage-collect
// dead promises" to "drive timeout/backup checks on live ones".
type Monitor struct {
	registry *InvocationRegistry
	logger   Logger
	opts     *monitorOptions
}

// NewMonitor constructs a Monitor over the given registry.
func NewMonitor(registry *InvocationRegistry, logger Logger, opts ...MonitorOption) (*Monitor, error) {
	cfg, err := resolveMonitorOptions(opts)
	if err != nil {
		return nil, err
	}
	if !logger.valid() {
		logger = NewNoopLogger()
	}
	return &Monitor{registry: registry, logger: logger, opts: cfg}, nil
}

// Run blocks, ticking the invocation scan and the backup-timeout scan on
// their independent cadences until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	scanTicker := time.NewTicker(m.opts.scanInterval)
	defer scanTicker.Stop()
	backupTicker := time.NewTicker(m.opts.backupCheckInterval)
	defer backupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			m.scanInvocationTimeouts()
		case <-backupTicker.C:
			m.scanBackupTimeouts()
		}
	}
}

// scanInvocationTimeouts drives NotifyInvocationTimeout across a batch of
// the registry (§4.5).
func (m *Monitor) scanInvocationTimeouts() {
	m.registry.Scan(m.opts.scanBatchSize, func(inv *Invocation) {
		inv.NotifyInvocationTimeout()
	})
}

// scanBackupTimeouts drives CheckBackupTimeout across a batch of the
// registry, using the backup-check interval itself as the staleness
// threshold (§4.5).
func (m *Monitor) scanBackupTimeouts() {
	m.registry.Scan(m.opts.scanBatchSize, func(inv *Invocation) {
		inv.CheckBackupTimeout(m.opts.backupCheckInterval)
	})
}
