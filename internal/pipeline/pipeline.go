// Package pipeline runs a prompt through planning, validation, compilation and
// preview, ending either in an applied next state or in suggestions only.
package pipeline

import (
	"github.com/heimdex/heimdex-editor/internal/compiler"
	"github.com/heimdex/heimdex-editor/internal/planner"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type ExecutionMode string

const (
	ModeApplied         ExecutionMode = "APPLIED"
	ModeSuggestionsOnly ExecutionMode = "SUGGESTIONS_ONLY"
)

const (
	ReasonPlanRejected    = "plan rejected"
	ReasonSuggestionsMode = "suggestions only mode requested"
	ReasonNoTarget        = "no applicable timeline target"
	ReasonPreviewFailed   = "preview failed invariants"
)

type Options struct {
	// Mode is the requested execution mode. The zero value means APPLIED.
	Mode   ExecutionMode
	Engine timeline.Engine
}

type Result struct {
	ExecutionMode             ExecutionMode          `json:"executionMode"`
	Plan                      planner.Plan           `json:"plan"`
	PlanValidation            planner.Validation     `json:"planValidation"`
	TrustTier                 TrustTier              `json:"trustTier"`
	AppliedTimelineOperations timeline.OperationList `json:"appliedTimelineOperations"`
	Skipped                   []compiler.Skipped     `json:"skipped"`
	NextState                 *timeline.State        `json:"nextState,omitempty"`
	NextRevision              int                    `json:"nextRevision,omitempty"`
	NextTimelineHash          string                 `json:"nextTimelineHash,omitempty"`
	ConstrainedSuggestions    []planner.Suggestion   `json:"constrainedSuggestions"`
	FallbackReason            string                 `json:"fallbackReason,omitempty"`
	Issues                    []timeline.Issue       `json:"issues"`
}

// Run never mutates state. When the result is APPLIED the caller persists
// NextState.
func Run(state *timeline.State, prompt string, opts Options) Result {
	plan := planner.Build(prompt)
	validation := planner.ValidatePlan(plan)

	res := Result{
		Plan:                      plan,
		PlanValidation:            validation,
		TrustTier:                 ClassifyTrust(validation.AverageConfidence, opts.Mode),
		AppliedTimelineOperations: timeline.OperationList{},
		Skipped:                   []compiler.Skipped{},
		Issues:                    []timeline.Issue{},
	}

	if !validation.IsValid {
		return suggest(res, ReasonPlanRejected)
	}
	if opts.Mode == ModeSuggestionsOnly {
		return suggest(res, ReasonSuggestionsMode)
	}

	compiled := compiler.Compile(state, plan.Intents)
	res.Skipped = compiled.Skipped
	if len(compiled.Operations) == 0 {
		return suggest(res, ReasonNoTarget)
	}

	preview := opts.Engine.Preview(state, compiled.Operations)
	if !preview.Valid {
		res.Issues = preview.Issues
		return suggest(res, ReasonPreviewFailed)
	}

	res.ExecutionMode = ModeApplied
	res.AppliedTimelineOperations = compiled.Operations
	res.NextState = preview.NextState
	res.NextRevision = preview.Revision
	res.NextTimelineHash = preview.TimelineHash
	res.ConstrainedSuggestions = []planner.Suggestion{}
	return res
}

func suggest(res Result, reason string) Result {
	res.ExecutionMode = ModeSuggestionsOnly
	res.FallbackReason = reason
	res.ConstrainedSuggestions = planner.Suggestions(res.Plan)
	return res
}
