package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type applyOutput struct {
	Path         string `json:"path"`
	Revision     int    `json:"revision"`
	TimelineHash string `json:"timelineHash"`
	Operations   int    `json:"operations"`
}

func newApplyCommand() *cobra.Command {
	var docPath, opsPath, outPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply an operation batch to a document file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openDocument(docPath)
			if err != nil {
				return err
			}
			ops, err := readOperations(opsPath)
			if err != nil {
				return err
			}

			res, err := timeline.Apply(ws.state, ops)
			if err != nil {
				return fmt.Errorf("apply: %w", err)
			}

			target := outPath
			if target == "" {
				target = docPath
			}
			if err := ws.save(target, res.State); err != nil {
				return err
			}

			out := applyOutput{Path: target, Revision: res.Revision, TimelineHash: res.TimelineHash, Operations: len(ops)}
			if wantJSON(cmd) {
				return writeJSON(cmd, out)
			}
			printBlocks(cmd, renderPairs([][2]string{
				{"Document", out.Path},
				{"Revision", strconv.Itoa(out.Revision)},
				{"Timeline hash", logging.ShortHash(out.TimelineHash)},
				{"Operations", strconv.Itoa(out.Operations)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Document file")
	cmd.Flags().StringVar(&opsPath, "ops", "", "JSON file holding the operation batch")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the result here instead of updating --doc")
	return cmd
}

func newPreviewCommand() *cobra.Command {
	var docPath, opsPath string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Dry-run an operation batch and report invariant issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openDocument(docPath)
			if err != nil {
				return err
			}
			ops, err := readOperations(opsPath)
			if err != nil {
				return err
			}

			preview := timeline.Preview(ws.state, ops)
			if wantJSON(cmd) {
				return writeJSON(cmd, preview)
			}

			pairs := [][2]string{{"Valid", yesNo(preview.Valid)}}
			if preview.Valid {
				pairs = append(pairs,
					[2]string{"Revision", strconv.Itoa(preview.Revision)},
					[2]string{"Timeline hash", logging.ShortHash(preview.TimelineHash)},
				)
			}
			printBlocks(cmd, renderPairs(pairs), renderIssues(preview.Issues))
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Document file")
	cmd.Flags().StringVar(&opsPath, "ops", "", "JSON file holding the operation batch")
	return cmd
}

type showOutput struct {
	TimelineHash string          `json:"timelineHash"`
	State        *timeline.State `json:"state"`
}

func newShowCommand() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tracks and clips of a document file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openDocument(docPath)
			if err != nil {
				return err
			}
			state := ws.state
			hash := timeline.CurrentHash(state)

			if wantJSON(cmd) {
				return writeJSON(cmd, showOutput{TimelineHash: hash, State: state})
			}

			summary := renderPairs([][2]string{
				{"Version", strconv.Itoa(state.Version)},
				{"Timeline hash", logging.ShortHash(hash)},
				{"FPS", strconv.FormatFloat(state.FPS, 'f', -1, 64)},
				{"Resolution", fmt.Sprintf("%dx%d", state.Resolution.Width, state.Resolution.Height)},
				{"Export preset", state.ExportPreset},
				{"Revisions", strconv.Itoa(len(state.Revisions))},
			})

			rows := [][]string{}
			for _, tr := range state.Tracks {
				if len(tr.Clips) == 0 {
					rows = append(rows, []string{tr.ID, string(tr.Kind), "-", "", "", "", ""})
					continue
				}
				for _, c := range tr.Clips {
					rows = append(rows, []string{
						tr.ID,
						string(tr.Kind),
						c.ID,
						c.Label,
						formatMs(c.TimelineInMs),
						formatMs(c.TimelineOutMs),
						fmt.Sprintf("%s-%s", formatMs(c.SourceInMs), formatMs(c.SourceOutMs)),
					})
				}
			}
			clips := renderTable(
				[]string{"Track", "Kind", "Clip", "Label", "In", "Out", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			)
			printBlocks(cmd, summary, clips)
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Document file")
	return cmd
}

func newExportCommand() *cobra.Command {
	var docPath, outDir, title string
	var frameRate float64

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the primary video track as a CMX3600 EDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openDocument(docPath)
			if err != nil {
				return err
			}
			if frameRate < 0 {
				return fmt.Errorf("--frame-rate must be positive")
			}
			fps := frameRate
			if fps == 0 {
				fps = ws.state.FPS
			}

			clips, unresolved := export.FromTimeline(ws.state, ws.file.Assets)
			content := export.GenerateEDL(clips, export.SanitizeName(title, 120), fps)

			if outDir == "" {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}

			path, err := export.WriteEDL(outDir, title, content)
			if err != nil {
				return err
			}
			resp := export.ExportResponse{
				Status:          "completed",
				Format:          "edl",
				OutputPath:      path,
				ClipCount:       len(clips),
				UnresolvedClips: unresolved,
			}
			if wantJSON(cmd) {
				return writeJSON(cmd, resp)
			}
			pairs := [][2]string{
				{"Output", resp.OutputPath},
				{"Clips", strconv.Itoa(resp.ClipCount)},
			}
			if len(unresolved) > 0 {
				pairs = append(pairs, [2]string{"Unresolved", strings.Join(unresolved, ", ")})
			}
			printBlocks(cmd, renderPairs(pairs))
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Document file")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write the EDL into (stdout when empty)")
	cmd.Flags().StringVar(&title, "title", "", "EDL title and file name")
	cmd.Flags().Float64Var(&frameRate, "frame-rate", 0, "Timecode frame rate (defaults to the document fps)")
	return cmd
}

func renderIssues(issues []timeline.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []string{is.Code, is.TrackID, is.ClipID, is.Message})
	}
	return renderTable([]string{"Issue", "Track", "Clip", "Message"}, rows, nil)
}

func formatMs(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64) + "s"
}
