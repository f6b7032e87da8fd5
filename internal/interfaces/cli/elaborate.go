package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/molforge/fragelab/internal/application/elaboration"
	"github.com/molforge/fragelab/internal/domain/fragment"
)

// selectionFlags are shared by every pipeline-stage command.
type selectionFlags struct {
	Mode    string
	Indices []int
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Mode, "mode", "m", "grow", "elaboration mode (grow, link)")
	cmd.Flags().IntSliceVar(&f.Indices, "indices", nil, "zero-based library positions instead of names")
}

// resolve maps the flags plus positional name args to the canonical key and
// its candidate list.
func (f *selectionFlags) resolve(ctx context.Context, svc elaboration.Service, names []string) (fragment.ElaborationKey, []elaboration.Candidate, error) {
	if len(names) > 0 && len(f.Indices) > 0 {
		return fragment.ElaborationKey{}, nil, fmt.Errorf("give fragment names or --indices, not both")
	}

	var (
		key fragment.ElaborationKey
		err error
	)
	if len(f.Indices) > 0 {
		key, err = svc.ResolveIndices(f.Mode, f.Indices)
	} else {
		key, err = svc.Resolve(f.Mode, names)
	}
	if err != nil {
		return fragment.ElaborationKey{}, nil, err
	}

	candidates, err := svc.Load(ctx, key)
	if err != nil {
		return fragment.ElaborationKey{}, nil, err
	}
	return key, candidates, nil
}

// CandidateRow is one loaded elaboration in list output.
type CandidateRow struct {
	Ordinal    int     `json:"ordinal"`
	Name       string  `json:"name"`
	Provenance string  `json:"provenance,omitempty"`
	Formula    string  `json:"formula"`
	MolWeight  float64 `json:"mol_weight"`
}

// ElaborateResult renders a loaded elaboration set.
type ElaborateResult struct {
	Key        string         `json:"key"`
	Filename   string         `json:"filename"`
	Candidates []CandidateRow `json:"candidates"`
}

// TableHeaders implements tableProvider.
func (r ElaborateResult) TableHeaders() []string {
	return []string{"ORDINAL", "NAME", "PROVENANCE", "FORMULA", "MOL WEIGHT"}
}

// TableRows implements tableProvider.
func (r ElaborateResult) TableRows() [][]string {
	rows := make([][]string, len(r.Candidates))
	for i, c := range r.Candidates {
		rows[i] = []string{
			strconv.Itoa(c.Ordinal),
			c.Name,
			c.Provenance,
			c.Formula,
			fmt.Sprintf("%.2f", c.MolWeight),
		}
	}
	return rows
}

// String renders the set for text output.
func (r ElaborateResult) String() string {
	return fmt.Sprintf("%s (%s): %d candidates\n%s",
		r.Key, r.Filename, len(r.Candidates),
		FormatTable(r.TableHeaders(), r.TableRows()))
}

// NewElaborateCmd creates the elaborate command: resolve a selection and
// list its precomputed elaborations.
func NewElaborateCmd() *cobra.Command {
	sel := &selectionFlags{}

	cmd := &cobra.Command{
		Use:   "elaborate [fragment names]",
		Short: "Resolve a selection and list its elaboration candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElaborate(cmd, sel, args)
		},
	}
	sel.register(cmd)
	return cmd
}

func runElaborate(cmd *cobra.Command, sel *selectionFlags, names []string) error {
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

	result := ElaborateResult{
		Key:        key.String(),
		Filename:   key.Filename(),
		Candidates: make([]CandidateRow, len(candidates)),
	}
	for i, c := range candidates {
		prov, _ := c.Provenance()
		result.Candidates[i] = CandidateRow{
			Ordinal:    c.Ordinal,
			Name:       c.Name(),
			Provenance: prov.String(),
			Formula:    c.Mol.Formula(),
			MolWeight:  c.Mol.MolecularWeight(),
		}
	}
	return PrintResult(cmd, result)
}
