package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/domain/run"
	fragtypes "github.com/molforge/fragelab/pkg/types/fragment"
	runtypes "github.com/molforge/fragelab/pkg/types/run"
)

func fragResolveRequest(sel *selectionFlags) fragtypes.ResolveRequest {
	return fragtypes.ResolveRequest{Mode: sel.Mode, Indices: sel.Indices}
}

// RunResult renders one completed pipeline run.
type RunResult struct {
	Run      runtypes.Run               `json:"run"`
	Outcomes []runtypes.CandidateOutcome `json:"outcomes,omitempty"`
}

// TableHeaders implements tableProvider.
func (r RunResult) TableHeaders() []string {
	return []string{"ORDINAL", "NAME", "PROVENANCE", "KEPT", "SCORE", "SKIP REASON"}
}

// TableRows implements tableProvider.
func (r RunResult) TableRows() [][]string {
	rows := make([][]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		kept := o.PassedDruglike && o.PassedPAINS
		score := "-"
		if o.Pose != nil {
			score = fmt.Sprintf("%.3f", o.Pose.Combined)
		}
		rows[i] = []string{
			strconv.Itoa(o.Ordinal),
			o.Name,
			o.Provenance,
			strconv.FormatBool(kept),
			score,
			o.SkipReason,
		}
	}
	return rows
}

// String renders the run summary plus the outcome table for text output.
func (r RunResult) String() string {
	head := fmt.Sprintf("run %s %s: %s (loaded %d, kept %d, posed %d, skipped %d)",
		r.Run.ID, r.Run.Key, r.Run.Status,
		r.Run.Counts.Loaded, r.Run.Counts.Kept, r.Run.Counts.Posed, r.Run.Counts.Skipped)
	if r.Run.Status == runtypes.StatusCompleted && r.Run.Counts.Posed > 0 {
		head += fmt.Sprintf("\nbest: ordinal %d, score %.3f", r.Run.BestOrdinal, r.Run.BestScore)
	}
	if r.Run.Error != "" {
		head += "\nerror: " + r.Run.Error
	}
	if len(r.Outcomes) == 0 {
		return head
	}
	return head + "\n" + FormatTable(r.TableHeaders(), r.TableRows())
}

// NewRunCmd creates the run command: the full pipeline in one shot.
func NewRunCmd() *cobra.Command {
	sel := &selectionFlags{}
	var (
		outDir string
		async  bool
		wait   bool
	)

	cmd := &cobra.Command{
		Use:   "run [fragment names]",
		Short: "Execute the full elaboration pipeline for a selection",
		Long:  "Resolve the selection, load its elaborations, screen them, pose the\nsurvivors, and report per-candidate outcomes. Runs locally by default;\nwith --server the run is dispatched to the API server instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, sel, args, outDir, async, wait)
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "poses", "directory for best-pose SDF output (local runs)")
	cmd.Flags().BoolVar(&async, "async", false, "queue the run on the server instead of waiting (needs --server)")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll an async run until it finishes")
	return cmd
}

func runRun(cmd *cobra.Command, sel *selectionFlags, names []string, outDir string, async, wait bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	if cliCtx.Client != nil {
		return runRemote(cmd, cliCtx, ctx, sel, names, async, wait)
	}
	if async {
		return fmt.Errorf("--async needs --server: local runs always execute inline")
	}
	return runLocal(cmd, cliCtx, ctx, sel, names, outDir)
}

func runLocal(cmd *cobra.Command, cliCtx *CLIContext, ctx context.Context, sel *selectionFlags, names []string, outDir string) error {
	pipe, err := buildLocalPipeline(cliCtx.Config, cliCtx.Logger, outDir)
	if err != nil {
		return err
	}

	if len(sel.Indices) > 0 {
		key, err := pipe.Elaboration.ResolveIndices(sel.Mode, sel.Indices)
		if err != nil {
			return err
		}
		names = key.Names
	}

	r, err := pipe.Runs.Execute(ctx, runs.ExecuteInput{Mode: sel.Mode, Names: names})
	if err != nil {
		return err
	}

	report, err := pipe.Runs.Report(ctx, r.ID)
	if err != nil {
		return err
	}
	return PrintResult(cmd, toRunResult(report.Run, report.Outcomes))
}

func runRemote(cmd *cobra.Command, cliCtx *CLIContext, ctx context.Context, sel *selectionFlags, names []string, async, wait bool) error {
	if len(sel.Indices) > 0 {
		resolved, err := cliCtx.Client.Fragments().Resolve(ctx, fragResolveRequest(sel))
		if err != nil {
			return err
		}
		names = resolved.Names
	}

	created, err := cliCtx.Client.Runs().Create(ctx, runtypes.CreateRequest{
		Mode:  sel.Mode,
		Names: names,
		Async: async,
	})
	if err != nil {
		return err
	}

	if async && wait {
		created, err = cliCtx.Client.Runs().WaitForCompletion(ctx, created.ID, 2*time.Second)
		if err != nil {
			return err
		}
	}

	if created.Status == runtypes.StatusCompleted || created.Status == runtypes.StatusFailed {
		report, err := cliCtx.Client.Runs().Report(ctx, created.ID)
		if err == nil {
			return PrintResult(cmd, RunResult{Run: report.Run, Outcomes: report.Outcomes})
		}
	}
	return PrintResult(cmd, RunResult{Run: *created})
}

func toRunResult(r *run.Run, outcomes []run.CandidateOutcome) RunResult {
	result := RunResult{
		Run: runtypes.Run{
			ID:          string(r.ID),
			Mode:        string(r.Mode),
			Key:         r.Key,
			Status:      string(r.Status),
			Counts:      runtypes.Counts(r.Counts),
			BestOrdinal: r.BestOrdinal,
			BestScore:   r.BestScore,
			Error:       r.Error,
			CreatedAt:   r.CreatedAt,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		},
		Outcomes: make([]runtypes.CandidateOutcome, len(outcomes)),
	}
	for i, o := range outcomes {
		dto := runtypes.CandidateOutcome{
			Ordinal:            o.Ordinal,
			Name:               o.Name,
			Provenance:         o.Provenance,
			Descriptors:        o.Descriptors,
			PassedDruglike:     o.PassedDruglike,
			DruglikeViolations: o.DruglikeViolations,
			PassedPAINS:        o.PassedPAINS,
			PAINSHits:          o.PAINSHits,
			SkipReason:         o.SkipReason,
		}
		if o.Pose != nil {
			p := runtypes.PoseScore(*o.Pose)
			dto.Pose = &p
		}
		result.Outcomes[i] = dto
	}
	return result
}
