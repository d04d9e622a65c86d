// Package risk classifies readings against the operator-maintained
// threshold table.
package risk

import (
	"fmt"

	"fieldops-gateway/internal/model"
)

// Threshold holds the warn/crit cutoffs for one (asset, metric) pair.
// Crit is expected to be above warn but that is not enforced; Classify
// stays deterministic either way.
type Threshold struct {
	Warn float64
	Crit float64
}

// Table maps asset id → metric → threshold.
type Table map[string]map[string]Threshold

// Lookup returns the threshold for (assetID, metric), if configured.
func (t Table) Lookup(assetID, metric string) (Threshold, bool) {
	metrics, ok := t[assetID]
	if !ok {
		return Threshold{}, false
	}
	thr, ok := metrics[metric]
	return thr, ok
}

// Classify maps a reading to an optional risk event. Unmonitored
// (asset, metric) pairs never alarm. Both comparisons are inclusive, and
// critical is checked first so the more severe label wins if the table is
// misconfigured with crit <= warn.
func Classify(r model.Reading, table Table) (model.RiskEvent, bool) {
	thr, ok := table.Lookup(r.AssetID, r.Metric)
	if !ok {
		return model.RiskEvent{}, false
	}
	if r.Value >= thr.Crit {
		return model.RiskEvent{
			Level:   model.LevelCritical,
			Reason:  fmt.Sprintf("%s >= %v", r.Metric, thr.Crit),
			Reading: r,
		}, true
	}
	if r.Value >= thr.Warn {
		return model.RiskEvent{
			Level:   model.LevelWarning,
			Reason:  fmt.Sprintf("%s >= %v", r.Metric, thr.Warn),
			Reading: r,
		}, true
	}
	return model.RiskEvent{}, false
}
