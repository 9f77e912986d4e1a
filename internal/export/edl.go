package export

import (
	"fmt"
	"math"
	"strings"
)

const defaultReel = "AX"

// GenerateEDL renders a CMX3600 edit decision list. Record times follow each
// clip's timeline position, so gaps on the timeline stay gaps in the EDL.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
	timecode := func(ms int64) string { return msToTimecode(ms, fps) }

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		timecode = func(ms int64) string { return msToDropFrameTimecode(ms, frameRate, fps) }
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, clip := range clips {
		reel := clip.Reel
		if reel == "" {
			reel = defaultReel
		}
		srcIn := timecode(clip.SourceInMs)
		srcOut := timecode(clip.SourceOutMs)
		recIn := timecode(clip.RecordInMs)
		recOut := timecode(clip.RecordInMs + clip.durationMs())

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %-8s %s %s %s %s", i+1, reel, "V", editType(clip, fps), srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
		)
		if clip.MediaPath != "" {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath))
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// editType is C for a cut, or D with a frame count for a dissolve.
func editType(clip ResolvedClip, fps int) string {
	switch strings.ToLower(clip.TransitionType) {
	case "dissolve", "crossfade", "fade":
		frames := int(math.Round(float64(clip.TransitionMs) * float64(fps) / 1000.0))
		if frames > 0 {
			return fmt.Sprintf("D %03d", frames)
		}
	}
	return "C"
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int64(math.Round(float64(ms) * float64(fps) / 1000.0))
	f := int64(fps)
	frames := totalFrames % f
	totalSeconds := totalFrames / f
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}

// msToDropFrameTimecode counts frames at the real NTSC rate and skips the
// first two (29.97) or four (59.94) frame labels of every minute not divisible
// by ten, so the label tracks wall-clock time. Frames are separated by ';'.
func msToDropFrameTimecode(ms int64, frameRate float64, fps int) string {
	frameNumber := int64(math.Round(float64(ms) * frameRate / 1000.0))
	drop := int64(fps / 15)
	framesPerMinute := int64(fps)*60 - drop
	framesPer10Minutes := int64(math.Round(frameRate * 600))

	tens := frameNumber / framesPer10Minutes
	rem := frameNumber % framesPer10Minutes
	frameNumber += 9 * drop * tens
	if rem > drop {
		frameNumber += drop * ((rem - drop) / framesPerMinute)
	}

	f := int64(fps)
	frames := frameNumber % f
	totalSeconds := frameNumber / f
	return fmt.Sprintf("%02d:%02d:%02d;%02d", totalSeconds/3600, totalSeconds/60%60, totalSeconds%60, frames)
}
