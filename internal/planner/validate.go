package planner

import (
	"fmt"
	"math"
)

// Validation is the verdict of the plan gate.
type Validation struct {
	IsValid           bool     `json:"isValid"`
	LowConfidence     bool     `json:"lowConfidence"`
	AverageConfidence float64  `json:"averageConfidence"`
	ValidPlanRate     float64  `json:"validPlanRate"`
	Reasons           []string `json:"reasons"`
}

// ValidatePlan decides whether a plan may proceed to compilation. Rejection is
// a result, never an error.
func ValidatePlan(p Plan) Validation {
	avg := AverageConfidence(p.Intents)
	reasons := []string{}

	if len(p.Intents) == 0 {
		reasons = append(reasons, "plan has no operations")
	}
	if len(p.Intents) > MaxOps {
		reasons = append(reasons, fmt.Sprintf("plan has %d operations, limit is %d", len(p.Intents), MaxOps))
	}

	generic := 0
	for _, in := range p.Intents {
		if !Supported(in.Op) {
			reasons = append(reasons, fmt.Sprintf("unsupported operation %q", in.Op))
		}
		if in.Op == OpGeneric {
			generic++
		}
	}
	if len(p.Intents) > 0 && generic == len(p.Intents) {
		reasons = append(reasons, "plan contains only generic operations")
	}
	low := avg < MinConfidence
	if low {
		reasons = append(reasons, fmt.Sprintf("average confidence %.2f is below %.2f", avg, MinConfidence))
	}

	valid := len(reasons) == 0
	return Validation{
		IsValid:           valid,
		LowConfidence:     low,
		AverageConfidence: avg,
		ValidPlanRate:     ValidPlanRate(valid, avg),
		Reasons:           reasons,
	}
}

// ValidPlanRate is a display score in [0,100].
func ValidPlanRate(valid bool, confidence float64) float64 {
	score := confidence * 100
	if valid {
		return round(math.Max(98, score), 2)
	}
	return round(math.Max(0, score-35), 2)
}
