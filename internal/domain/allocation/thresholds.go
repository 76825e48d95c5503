package allocation

import "fmt"

// Thresholds are the tunable limits of the capacity analysis. Percentages are
// on the 0-100 scale.
type Thresholds struct {
	FlowHighBeds        int
	UtilizationCritical float64
	UtilizationHigh     float64
	ShortageCritical    float64
	DonorMax            float64
	RemediationFraction float64
}

const (
	DefaultFlowHighBeds        = 50
	DefaultUtilizationCritical = 90
	DefaultUtilizationHigh     = 70
	DefaultShortageCritical    = 95
	DefaultDonorMax            = 50
	DefaultRemediationFraction = 0.2
)

func DefaultThresholds() Thresholds {
	return Thresholds{
		FlowHighBeds:        DefaultFlowHighBeds,
		UtilizationCritical: DefaultUtilizationCritical,
		UtilizationHigh:     DefaultUtilizationHigh,
		ShortageCritical:    DefaultShortageCritical,
		DonorMax:            DefaultDonorMax,
		RemediationFraction: DefaultRemediationFraction,
	}
}

func (t Thresholds) Validate() error {
	if t.UtilizationHigh >= t.UtilizationCritical {
		return fmt.Errorf("utilization high threshold %.2f must be below critical %.2f",
			t.UtilizationHigh, t.UtilizationCritical)
	}
	if t.ShortageCritical < t.UtilizationCritical {
		return fmt.Errorf("shortage critical threshold %.2f must not be below utilization critical %.2f",
			t.ShortageCritical, t.UtilizationCritical)
	}
	if t.RemediationFraction <= 0 || t.RemediationFraction > 1 {
		return fmt.Errorf("remediation fraction %.2f must be in (0, 1]", t.RemediationFraction)
	}
	return nil
}
