package model

// PSUType records which selection pass picked a site.
type PSUType string

const (
	PSUPrimary     PSUType = "Primary"
	PSUReplacement PSUType = "Replacement"
	PSUNotSelected PSUType = "Not Selected"
)

// Selection is the outcome of one PPS pass for one site.
type Selection struct {
	Site
	StratumName string  `json:"stratum_name"`
	LowerBound  int     `json:"lower_bound"`
	Cumulative  int     `json:"cumulative"`
	Selections  int     `json:"selections"`
	Target      int     `json:"target"`
	PSUType     PSUType `json:"psu_type"`
}

// Allocation is the final per-site interview allocation after all passes and
// capacity constraints.
type Allocation struct {
	Site
	StratumName            string  `json:"stratum_name"`
	PSUType                PSUType `json:"psu_type"`
	Selections             int     `json:"selections"`
	OriginalTarget         int     `json:"original_target"`
	Target                 int     `json:"target"`
	EffectiveLimit         int     `json:"effective_limit"`
	IsConstrained          bool    `json:"is_constrained"`
	Excess                 int     `json:"excess"`
	ReceivedRedistribution bool    `json:"received_redistribution"`
}

// RedistributionStats summarises one capacity-constraint application.
type RedistributionStats struct {
	TotalExcess             int  `json:"total_excess" yaml:"total_excess"`
	ClustersConstrained     int  `json:"clusters_constrained" yaml:"clusters_constrained"`
	ClustersReceiving       int  `json:"clusters_receiving" yaml:"clusters_receiving"`
	InterviewsRedistributed int  `json:"interviews_redistributed" yaml:"interviews_redistributed"`
	InterviewsLost          int  `json:"interviews_lost" yaml:"interviews_lost"`
	InsufficientCapacity    bool `json:"insufficient_capacity" yaml:"insufficient_capacity"`
}

// Add accumulates o into s.
func (s *RedistributionStats) Add(o RedistributionStats) {
	s.TotalExcess += o.TotalExcess
	s.ClustersConstrained += o.ClustersConstrained
	s.ClustersReceiving += o.ClustersReceiving
	s.InterviewsRedistributed += o.InterviewsRedistributed
	s.InterviewsLost += o.InterviewsLost
	s.InsufficientCapacity = s.InsufficientCapacity || o.InsufficientCapacity
}
