// Package screening implements the property filters applied between loading
// an elaboration set and posing it: a Lipinski-style drug-likeness screen and
// a PAINS interference-pattern screen. Both are pure and order-preserving;
// services map them over candidate lists.
package screening

import (
	"github.com/molforge/fragelab/pkg/errors"
)

// Thresholds parameterizes the drug-likeness screen.
type Thresholds struct {
	MaxMolWeight float64 `json:"max_mol_weight" mapstructure:"max_mol_weight"`
	MaxCLogP     float64 `json:"max_clogp" mapstructure:"max_clogp"`
	MaxHBA       int     `json:"max_hba" mapstructure:"max_hba"`
	MaxHBD       int     `json:"max_hbd" mapstructure:"max_hbd"`

	// MaxViolations is the exclusive bound: a structure passes while its
	// violation count stays strictly below it. The default of 2 keeps
	// single-violation structures, matching common Lipinski practice.
	MaxViolations int `json:"max_violations" mapstructure:"max_violations"`
}

// DefaultThresholds returns the standard rule-of-five limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxMolWeight:  500,
		MaxCLogP:      5,
		MaxHBA:        10,
		MaxHBD:        5,
		MaxViolations: 2,
	}
}

// Validate rejects threshold sets that would pass nothing or are nonsense.
func (t Thresholds) Validate() error {
	if t.MaxMolWeight <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "max molecular weight %.1f must be positive", t.MaxMolWeight)
	}
	if t.MaxHBA < 0 || t.MaxHBD < 0 {
		return errors.New(errors.ErrCodeValidation, "acceptor and donor limits must be non-negative")
	}
	if t.MaxViolations < 1 {
		return errors.Newf(errors.ErrCodeValidation, "max violations %d would reject every structure", t.MaxViolations)
	}
	return nil
}
