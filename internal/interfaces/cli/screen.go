package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ScreenRow is one candidate's filter verdict.
type ScreenRow struct {
	Ordinal            int      `json:"ordinal"`
	Name               string   `json:"name"`
	MolWeight          float64  `json:"mol_weight"`
	CLogP              float64  `json:"clogp"`
	HBA                int      `json:"hba"`
	HBD                int      `json:"hbd"`
	Kept               bool     `json:"kept"`
	DruglikeViolations []string `json:"druglike_violations,omitempty"`
	PAINSHits          []string `json:"pains_hits,omitempty"`
}

// ScreenResult renders one screening pass.
type ScreenResult struct {
	Key      string      `json:"key"`
	Loaded   int         `json:"loaded"`
	Kept     int         `json:"kept"`
	Verdicts []ScreenRow `json:"verdicts"`
}

// TableHeaders implements tableProvider.
func (r ScreenResult) TableHeaders() []string {
	return []string{"ORDINAL", "NAME", "MW", "CLOGP", "HBA", "HBD", "KEPT", "REASONS"}
}

// TableRows implements tableProvider.
func (r ScreenResult) TableRows() [][]string {
	rows := make([][]string, len(r.Verdicts))
	for i, v := range r.Verdicts {
		reasons := append([]string{}, v.DruglikeViolations...)
		reasons = append(reasons, v.PAINSHits...)
		rows[i] = []string{
			strconv.Itoa(v.Ordinal),
			v.Name,
			fmt.Sprintf("%.1f", v.MolWeight),
			fmt.Sprintf("%.2f", v.CLogP),
			strconv.Itoa(v.HBA),
			strconv.Itoa(v.HBD),
			strconv.FormatBool(v.Kept),
			strings.Join(reasons, ", "),
		}
	}
	return rows
}

// String renders the pass for text output.
func (r ScreenResult) String() string {
	return fmt.Sprintf("%s: kept %d of %d candidates\n%s",
		r.Key, r.Kept, r.Loaded, FormatTable(r.TableHeaders(), r.TableRows()))
}

// NewScreenCmd creates the screen command: load a selection's elaborations
// and run the drug-likeness and interference filters.
func NewScreenCmd() *cobra.Command {
	sel := &selectionFlags{}

	cmd := &cobra.Command{
		Use:   "screen [fragment names]",
		Short: "Screen a selection's elaborations for drug-likeness and PAINS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreen(cmd, sel, args)
		},
	}
	sel.register(cmd)
	return cmd
}

func runScreen(cmd *cobra.Command, sel *selectionFlags, names []string) error {
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

	result := ScreenResult{
		Key:      key.String(),
		Loaded:   len(candidates),
		Kept:     len(screened.Kept),
		Verdicts: make([]ScreenRow, len(screened.Verdicts)),
	}
	for i, v := range screened.Verdicts {
		result.Verdicts[i] = ScreenRow{
			Ordinal:            v.Ordinal,
			Name:               v.Name,
			MolWeight:          v.Druglike.Descriptors.MolWeight,
			CLogP:              v.Druglike.Descriptors.CLogP,
			HBA:                v.Druglike.Descriptors.HBA,
			HBD:                v.Druglike.Descriptors.HBD,
			Kept:               v.Kept(),
			DruglikeViolations: v.Druglike.Violations,
			PAINSHits:          v.PAINS.Hits,
		}
	}
	return PrintResult(cmd, result)
}
