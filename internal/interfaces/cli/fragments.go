package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/molforge/fragelab/internal/domain/fragment"
	fragtypes "github.com/molforge/fragelab/pkg/types/fragment"
)

// FragmentListResult renders the library listing.
type FragmentListResult struct {
	Fragments []fragtypes.Info `json:"fragments"`
}

// TableHeaders implements tableProvider.
func (r FragmentListResult) TableHeaders() []string {
	return []string{"#", "NAME", "FORMULA", "HEAVY ATOMS", "MOL WEIGHT"}
}

// TableRows implements tableProvider.
func (r FragmentListResult) TableRows() [][]string {
	rows := make([][]string, len(r.Fragments))
	for i, f := range r.Fragments {
		rows[i] = []string{
			strconv.Itoa(i),
			f.Name,
			f.Formula,
			strconv.Itoa(f.HeavyAtoms),
			fmt.Sprintf("%.2f", f.MolWeight),
		}
	}
	return rows
}

// String renders the listing for text output.
func (r FragmentListResult) String() string {
	return FormatTable(r.TableHeaders(), r.TableRows())
}

// NewFragmentsCmd creates the fragments command group.
func NewFragmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragments",
		Short: "Inspect the fragment library",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List library fragments in screening order",
		RunE:  runFragmentsList,
	}

	cmd.AddCommand(listCmd)
	return cmd
}

func runFragmentsList(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	if cliCtx.Client != nil {
		infos, err := cliCtx.Client.Fragments().List(cmd.Context())
		if err != nil {
			return err
		}
		return PrintResult(cmd, FragmentListResult{Fragments: infos})
	}

	lib, err := fragment.LoadLibraryFile(cliCtx.Config.Library.Path)
	if err != nil {
		return err
	}

	infos := make([]fragtypes.Info, 0, lib.Len())
	for _, name := range lib.Names() {
		f, err := lib.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, fragtypes.Info{
			Name:       f.Name,
			Formula:    f.Formula(),
			HeavyAtoms: f.HeavyAtoms(),
			MolWeight:  f.MolWeight(),
		})
	}
	return PrintResult(cmd, FragmentListResult{Fragments: infos})
}
