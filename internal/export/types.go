package export

// ExportRequest asks for an EDL of a project's primary video track written to
// OutputDir. Empty fields fall back to the project name and timeline fps.
type ExportRequest struct {
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// ResolvedClip is one EDL event. Source times come from the clip's source
// range and record times from its position on the timeline.
type ResolvedClip struct {
	ClipName       string
	Reel           string
	MediaPath      string
	SourceInMs     int64
	SourceOutMs    int64
	RecordInMs     int64
	TransitionType string
	TransitionMs   int64
}

func (c ResolvedClip) durationMs() int64 {
	return c.SourceOutMs - c.SourceInMs
}

type ExportResponse struct {
	Status          string   `json:"status"`
	Format          string   `json:"format"`
	OutputPath      string   `json:"output_path,omitempty"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips"`
}
