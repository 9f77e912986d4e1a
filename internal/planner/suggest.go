package planner

// Suggestion is a constrained, human-readable next step offered when a plan
// is not applied automatically.
type Suggestion struct {
	Op          IntentOp `json:"op"`
	Description string   `json:"description"`
	Example     string   `json:"example"`
}

var catalog = []Suggestion{
	{Op: OpSplit, Description: "Split the main video clip at its midpoint", Example: "split the clip in the middle"},
	{Op: OpTrim, Description: "Trim the last 10% of the main video clip", Example: "trim the ending"},
	{Op: OpCaptionStyle, Description: "Apply the caption style to every caption", Example: "style the captions"},
	{Op: OpZoom, Description: "Punch in on the main video clip", Example: "zoom in on the speaker"},
	{Op: OpAudioDuck, Description: "Lower the background music under speech", Example: "duck the background music"},
	{Op: OpReorder, Description: "Move the top track to the front", Example: "reorder the tracks"},
}

// Suggestions lists catalog entries relevant to the plan's intents. When the
// plan carries nothing recognisable the whole catalog is returned so the
// caller always has something concrete to offer.
func Suggestions(p Plan) []Suggestion {
	wanted := map[IntentOp]bool{}
	for _, in := range p.Intents {
		if in.Op != OpGeneric {
			wanted[in.Op] = true
		}
	}
	out := make([]Suggestion, 0, len(catalog))
	for _, s := range catalog {
		if len(wanted) == 0 || wanted[s.Op] {
			out = append(out, s)
		}
	}
	return out
}
