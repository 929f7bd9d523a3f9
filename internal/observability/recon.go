package observability

import "github.com/prometheus/client_golang/prometheus"

// ReconMetrics counts reconciliation decisions. A nil *ReconMetrics is a no-op.
type ReconMetrics struct {
	rollovers   *prometheus.CounterVec
	closeouts   *prometheus.CounterVec
	drawer      *prometheus.CounterVec
	lockActions *prometheus.CounterVec
}

// NewReconMetrics registers the reconciliation collectors.
func NewReconMetrics(registerer prometheus.Registerer) *ReconMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &ReconMetrics{
		rollovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cashrecon_rollover_outcomes_total",
			Help: "Rollover submissions by outcome.",
		}, []string{"outcome"}),
		closeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cashrecon_closeout_submissions_total",
			Help: "Safe closeout submissions by derived status and review flag.",
		}, []string{"status", "review"}),
		drawer: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cashrecon_drawer_counts_total",
			Help: "Drawer counts recorded by count type and threshold result.",
		}, []string{"count_type", "out_of_threshold"}),
		lockActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cashrecon_closeout_lock_actions_total",
			Help: "Closeout lock and amend actions.",
		}, []string{"action"}),
	}
	registerer.MustRegister(m.rollovers, m.closeouts, m.drawer, m.lockActions)
	return m
}

// RolloverOutcome counts a rollover decision.
func (m *ReconMetrics) RolloverOutcome(outcome string) {
	if m == nil {
		return
	}
	m.rollovers.WithLabelValues(outcome).Inc()
}

// CloseoutGraded counts a closeout submission.
func (m *ReconMetrics) CloseoutGraded(status string, requiresReview bool) {
	if m == nil {
		return
	}
	m.closeouts.WithLabelValues(status, boolLabel(requiresReview)).Inc()
}

// DrawerCounted counts a drawer checkpoint.
func (m *ReconMetrics) DrawerCounted(countType string, outOfThreshold bool) {
	if m == nil {
		return
	}
	m.drawer.WithLabelValues(countType, boolLabel(outOfThreshold)).Inc()
}

// CloseoutAction counts lock/amend actions.
func (m *ReconMetrics) CloseoutAction(action string) {
	if m == nil {
		return
	}
	m.lockActions.WithLabelValues(action).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
