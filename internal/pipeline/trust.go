package pipeline

type TrustTier string

const (
	TrustSuggestionsOnly  TrustTier = "SUGGESTIONS_ONLY"
	TrustApplyWithConfirm TrustTier = "APPLY_WITH_CONFIRM"
	TrustApplied          TrustTier = "APPLIED"
)

const (
	confirmThreshold = 0.65
	autoThreshold    = 0.85
)

// ClassifyTrust buckets a plan confidence for callers deciding how to present
// the result. It does not influence whether Run applies.
func ClassifyTrust(confidence float64, mode ExecutionMode) TrustTier {
	switch {
	case mode == ModeSuggestionsOnly || confidence < confirmThreshold:
		return TrustSuggestionsOnly
	case confidence < autoThreshold:
		return TrustApplyWithConfirm
	default:
		return TrustApplied
	}
}
