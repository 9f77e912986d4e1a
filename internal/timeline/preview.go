package timeline

import "errors"

type PreviewResult struct {
	Valid        bool    `json:"valid"`
	NextState    *State  `json:"nextState,omitempty"`
	Revision     int     `json:"revision,omitempty"`
	TimelineHash string  `json:"timelineHash,omitempty"`
	Issues       []Issue `json:"issues"`
}

// Preview applies ops to a scratch copy of state and reports whether the
// result would commit. It never returns an error and never touches state.
func Preview(state *State, ops []Operation) PreviewResult {
	return defaultEngine.Preview(state, ops)
}

func (e Engine) Preview(state *State, ops []Operation) PreviewResult {
	res, err := e.Apply(state, ops)
	if err != nil {
		var invErr *InvariantError
		if errors.As(err, &invErr) {
			return PreviewResult{Valid: false, Issues: invErr.Issues}
		}
		return PreviewResult{
			Valid:  false,
			Issues: []Issue{{Code: IssueApplyFailed, Message: err.Error()}},
		}
	}
	return PreviewResult{
		Valid:        true,
		NextState:    res.State,
		Revision:     res.Revision,
		TimelineHash: res.TimelineHash,
		Issues:       []Issue{},
	}
}
