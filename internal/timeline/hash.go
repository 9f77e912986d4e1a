package timeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashView is the part of the state covered by the timeline hash. Revisions
// are left out so the digest never folds in earlier hashes.
type hashView struct {
	Version      int        `json:"version"`
	FPS          float64    `json:"fps"`
	Resolution   Resolution `json:"resolution"`
	ExportPreset string     `json:"exportPreset"`
	Tracks       []Track    `json:"tracks"`
}

// Hash returns the hex SHA-256 of the canonical JSON of s.
func Hash(s *State) (string, error) {
	tracks := s.Tracks
	if tracks == nil {
		tracks = []Track{}
	}
	data, err := json.Marshal(hashView{
		Version:      s.Version,
		FPS:          s.FPS,
		Resolution:   s.Resolution,
		ExportPreset: s.ExportPreset,
		Tracks:       tracks,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CurrentHash is Hash for callers that already hold a valid state.
func CurrentHash(s *State) string {
	h, err := Hash(s)
	if err != nil {
		return ""
	}
	return h
}
