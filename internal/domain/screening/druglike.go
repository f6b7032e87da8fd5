package screening

import (
	"fmt"

	"github.com/molforge/fragelab/internal/chem/descriptors"
	"github.com/molforge/fragelab/internal/chem/mol"
)

// DruglikeVerdict is the drug-likeness result for one structure. Violations
// are recorded even when the structure passes: one violation is reportable
// but not disqualifying under the default thresholds.
type DruglikeVerdict struct {
	Descriptors descriptors.Set `json:"descriptors"`
	Violations  []string        `json:"violations,omitempty"`
	Pass        bool            `json:"pass"`
}

// EvaluateDruglike computes the structure's descriptors and counts threshold
// violations. The structure passes while violations stay below
// Thresholds.MaxViolations.
func EvaluateDruglike(m *mol.Mol, th Thresholds) DruglikeVerdict {
	return JudgeDruglike(descriptors.Compute(m), th)
}

// JudgeDruglike counts threshold violations on a precomputed descriptor set,
// for callers that cache descriptor computation.
func JudgeDruglike(set descriptors.Set, th Thresholds) DruglikeVerdict {
	var violations []string
	if set.MolWeight > th.MaxMolWeight {
		violations = append(violations, fmt.Sprintf("MW %.1f > %.0f", set.MolWeight, th.MaxMolWeight))
	}
	if set.CLogP > th.MaxCLogP {
		violations = append(violations, fmt.Sprintf("cLogP %.2f > %.0f", set.CLogP, th.MaxCLogP))
	}
	if set.HBA > th.MaxHBA {
		violations = append(violations, fmt.Sprintf("HBA %d > %d", set.HBA, th.MaxHBA))
	}
	if set.HBD > th.MaxHBD {
		violations = append(violations, fmt.Sprintf("HBD %d > %d", set.HBD, th.MaxHBD))
	}
	return DruglikeVerdict{
		Descriptors: set,
		Violations:  violations,
		Pass:        len(violations) < th.MaxViolations,
	}
}
