package screening

import (
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/pains"
)

// PAINSVerdict is the interference-pattern result for one structure. Any hit
// disqualifies.
type PAINSVerdict struct {
	Hits []string `json:"hits,omitempty"`
	Pass bool     `json:"pass"`
}

// EvaluatePAINS screens the structure against every sub-catalog of the
// default interference-pattern catalog.
func EvaluatePAINS(m *mol.Mol) PAINSVerdict {
	hits := pains.Screen(m, pains.Defaults())
	return PAINSVerdict{Hits: hits, Pass: len(hits) == 0}
}
