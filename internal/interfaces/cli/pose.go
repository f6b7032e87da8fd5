package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	appposing "github.com/molforge/fragelab/internal/application/posing"
	appruns "github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/sdf"
)

// PoseRow is one candidate's pose outcome.
type PoseRow struct {
	Ordinal    int     `json:"ordinal"`
	Name       string  `json:"name"`
	Provenance string  `json:"provenance,omitempty"`
	Posed      bool    `json:"posed"`
	Feature    float64 `json:"feature,omitempty"`
	Protrusion float64 `json:"protrusion,omitempty"`
	Combined   float64 `json:"combined,omitempty"`
	Conformer  int     `json:"conformer,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// PoseResult renders one pose stage invocation.
type PoseResult struct {
	Key      string    `json:"key"`
	Screened int       `json:"screened"`
	Posed    int       `json:"posed"`
	BestFile string    `json:"best_file,omitempty"`
	Outcomes []PoseRow `json:"outcomes"`
}

// TableHeaders implements tableProvider.
func (r PoseResult) TableHeaders() []string {
	return []string{"ORDINAL", "NAME", "PROVENANCE", "SCORE", "CONFORMER", "SKIP REASON"}
}

// TableRows implements tableProvider.
func (r PoseResult) TableRows() [][]string {
	rows := make([][]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		score := "-"
		conf := "-"
		if o.Posed {
			score = fmt.Sprintf("%.3f", o.Combined)
			conf = strconv.Itoa(o.Conformer)
		}
		rows[i] = []string{
			strconv.Itoa(o.Ordinal),
			o.Name,
			o.Provenance,
			score,
			conf,
			o.SkipReason,
		}
	}
	return rows
}

// String renders the stage for text output.
func (r PoseResult) String() string {
	s := fmt.Sprintf("%s: posed %d of %d kept candidates\n%s",
		r.Key, r.Posed, r.Screened, FormatTable(r.TableHeaders(), r.TableRows()))
	if r.BestFile != "" {
		s += fmt.Sprintf("\nbest pose written to %s", r.BestFile)
	}
	return s
}

// NewPoseCmd creates the pose command: screen a selection's elaborations and
// generate scored poses for the survivors.
func NewPoseCmd() *cobra.Command {
	sel := &selectionFlags{}
	var outFile string

	cmd := &cobra.Command{
		Use:   "pose [fragment names]",
		Short: "Generate scored 3D poses for a selection's kept elaborations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPose(cmd, sel, outFile, args)
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&outFile, "out", "", "write the best pose as SDF to this file")
	return cmd
}

func runPose(cmd *cobra.Command, sel *selectionFlags, outFile string, names []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	pipe, err := buildLocalPipeline(cliCtx.Config, cliCtx.Logger, "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	key, candidates, err := sel.resolve(ctx, pipe.Elaboration, names)
	if err != nil {
		return err
	}

	screened, err := pipe.Screening.Screen(ctx, candidates)
	if err != nil {
		return err
	}

	outcomes, err := pipe.Posing.PoseAll(ctx, screened.Kept)
	if err != nil {
		return err
	}

	result := PoseResult{
		Key:      key.String(),
		Screened: len(screened.Kept),
		Outcomes: make([]PoseRow, len(outcomes)),
	}
	best := -1
	for i, o := range outcomes {
		row := PoseRow{
			Ordinal:    o.Ordinal,
			Name:       o.Name,
			Provenance: o.Provenance.String(),
			Posed:      o.Posed(),
			SkipReason: o.SkipReason,
		}
		if o.Posed() {
			row.Feature = o.Result.Score.Feature
			row.Protrusion = o.Result.Score.Protrusion
			row.Combined = o.Result.Score.Combined
			row.Conformer = o.Result.Conformer
			result.Posed++
			if best < 0 || o.Result.Score.Combined > outcomes[best].Result.Score.Combined {
				best = i
			}
		}
		result.Outcomes[i] = row
	}

	if outFile != "" && best >= 0 {
		if err := writeBestPose(outFile, outcomes[best]); err != nil {
			return err
		}
		result.BestFile = outFile
	}
	return PrintResult(cmd, result)
}

// writeBestPose renders the best-scoring pose as a single-record SDF with the
// score components as data fields.
func writeBestPose(path string, best appposing.Outcome) error {
	m := best.Result.Best.Copy()
	m.SetTag(appruns.TagPoseScore, fmt.Sprintf("%.4f", best.Result.Score.Combined))
	m.SetTag(appruns.TagPoseFeature, fmt.Sprintf("%.4f", best.Result.Score.Feature))
	m.SetTag(appruns.TagPoseProtrusion, fmt.Sprintf("%.4f", best.Result.Score.Protrusion))
	return sdf.WriteFile(path, []*mol.Mol{m})
}
