package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/pipeline"
	"github.com/heimdex/heimdex-editor/internal/planner"
)

type planOutput struct {
	Plan        planner.Plan         `json:"plan"`
	Validation  planner.Validation   `json:"validation"`
	Suggestions []planner.Suggestion `json:"suggestions"`
}

func newPlanCommand() *cobra.Command {
	var docPath, mode string
	var write bool

	cmd := &cobra.Command{
		Use:   "plan <prompt>",
		Short: "Plan an edit request, optionally running it against a document",
		Long: "Without --doc only the intent plan and its validation are printed. " +
			"With --doc the full pipeline runs against the document and --write " +
			"saves an applied result back to it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt is required")
			}
			execMode := pipeline.ExecutionMode(strings.ToUpper(mode))
			switch execMode {
			case "", pipeline.ModeApplied, pipeline.ModeSuggestionsOnly:
			default:
				return fmt.Errorf("--mode must be %s or %s", pipeline.ModeApplied, pipeline.ModeSuggestionsOnly)
			}

			if docPath == "" {
				if write {
					return errors.New("--write needs --doc")
				}
				plan := planner.Build(prompt)
				out := planOutput{
					Plan:        plan,
					Validation:  planner.ValidatePlan(plan),
					Suggestions: planner.Suggestions(plan),
				}
				if wantJSON(cmd) {
					return writeJSON(cmd, out)
				}
				printBlocks(cmd, renderIntents(out.Plan), renderValidation(out.Validation))
				return nil
			}

			ws, err := openDocument(docPath)
			if err != nil {
				return err
			}
			res := pipeline.Run(ws.state, prompt, pipeline.Options{Mode: execMode})

			if write && res.ExecutionMode == pipeline.ModeApplied {
				if err := ws.save(docPath, res.NextState); err != nil {
					return err
				}
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, res)
			}
			printBlocks(cmd,
				renderIntents(res.Plan),
				renderValidation(res.PlanValidation),
				renderPipeline(res, write),
				renderIssues(res.Issues),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Document file to run the pipeline against")
	cmd.Flags().StringVar(&mode, "mode", "", "APPLIED or SUGGESTIONS_ONLY")
	cmd.Flags().BoolVar(&write, "write", false, "Save an applied result back to --doc")
	return cmd
}

func renderIntents(p planner.Plan) string {
	if len(p.Intents) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(p.Intents))
	for _, in := range p.Intents {
		rows = append(rows, []string{
			string(in.Op),
			in.Target,
			strconv.FormatFloat(in.Confidence, 'f', 2, 64),
			in.Phrase,
		})
	}
	return renderTable(
		[]string{"Intent", "Target", "Confidence", "Phrase"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderValidation(v planner.Validation) string {
	pairs := [][2]string{
		{"Valid", yesNo(v.IsValid)},
		{"Average confidence", strconv.FormatFloat(v.AverageConfidence, 'f', 3, 64)},
		{"Low confidence", yesNo(v.LowConfidence)},
	}
	for _, r := range v.Reasons {
		pairs = append(pairs, [2]string{"Reason", r})
	}
	return renderPairs(pairs)
}

func renderPipeline(res pipeline.Result, write bool) string {
	pairs := [][2]string{
		{"Mode", string(res.ExecutionMode)},
		{"Trust tier", string(res.TrustTier)},
	}
	if res.ExecutionMode == pipeline.ModeApplied {
		ops := make([]string, 0, len(res.AppliedTimelineOperations))
		for _, op := range res.AppliedTimelineOperations {
			ops = append(ops, string(op.Type()))
		}
		pairs = append(pairs,
			[2]string{"Operations", strings.Join(ops, ", ")},
			[2]string{"Next revision", strconv.Itoa(res.NextRevision)},
			[2]string{"Next hash", logging.ShortHash(res.NextTimelineHash)},
			[2]string{"Saved", yesNo(write)},
		)
	} else {
		pairs = append(pairs, [2]string{"Fallback", res.FallbackReason})
		for _, s := range res.ConstrainedSuggestions {
			pairs = append(pairs, [2]string{"Suggestion", s.Description})
		}
	}
	for _, sk := range res.Skipped {
		pairs = append(pairs, [2]string{"Skipped " + string(sk.Op), sk.Reason})
	}
	return renderPairs(pairs)
}
