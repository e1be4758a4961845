// Package session collects structured per-service scan results. Decision
// logic emits states; reporting sinks (boundary reporter, metrics,
// notifications) consume the aggregated report, keeping presentation out
// of the decision path.
package session

// State classifies the outcome of one service evaluation.
type State string

// Service evaluation outcomes.
const (
	// StateFresh means the service is already at the newest known version.
	StateFresh State = "fresh"
	// StateUpdated means a strictly newer version was accepted.
	StateUpdated State = "updated"
	// StateSkipped means a skip rule excluded the service before any
	// registry call.
	StateSkipped State = "skipped"
	// StateUnknown means no usable candidates were found.
	StateUnknown State = "unknown"
	// StateFailed means evaluation failed; the failure was isolated to
	// this service.
	StateFailed State = "failed"
)

// ServiceReport is the evaluated outcome for one service.
type ServiceReport struct {
	Service    string // Service name.
	Manifest   string // Manifest path the service belongs to.
	Image      string // Image reference as written in the manifest.
	OldVersion string // Current tag, when parsed.
	NewVersion string // Accepted tag, for updated services.
	State      State  // Evaluation outcome.
	Reason     string // Human-readable skip or failure reason.
}

// Report aggregates the outcomes of one scan.
type Report struct {
	reports []ServiceReport
}

// Add appends one service outcome.
func (r *Report) Add(report ServiceReport) {
	r.reports = append(r.reports, report)
}

// All returns every service outcome in evaluation order.
func (r *Report) All() []ServiceReport {
	return r.reports
}

// Updated returns the services with accepted updates.
func (r *Report) Updated() []ServiceReport { return r.byState(StateUpdated) }

// Fresh returns the services already up to date.
func (r *Report) Fresh() []ServiceReport { return r.byState(StateFresh) }

// Skipped returns the services excluded by skip rules.
func (r *Report) Skipped() []ServiceReport { return r.byState(StateSkipped) }

// Unknown returns the services without usable candidates.
func (r *Report) Unknown() []ServiceReport { return r.byState(StateUnknown) }

// Failed returns the services whose evaluation failed.
func (r *Report) Failed() []ServiceReport { return r.byState(StateFailed) }

func (r *Report) byState(state State) []ServiceReport {
	var matched []ServiceReport

	for _, report := range r.reports {
		if report.State == state {
			matched = append(matched, report)
		}
	}

	return matched
}
