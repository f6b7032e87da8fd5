package mol

// Atom property tables (simplified; production code would use RDKit via CGo
// or a gRPC service).

// atomicMasses holds standard atomic weights for the elements that appear in
// fragment libraries. Unknown elements fall back to carbon's mass.
var atomicMasses = map[string]float64{
	"H": 1.008, "He": 4.003, "Li": 6.94, "Be": 9.012, "B": 10.811,
	"C": 12.011, "N": 14.007, "O": 15.999, "F": 18.998, "Ne": 20.180,
	"Na": 22.990, "Mg": 24.305, "Al": 26.982, "Si": 28.086, "P": 30.974,
	"S": 32.06, "Cl": 35.45, "Ar": 39.948, "K": 39.098, "Ca": 40.078,
	"Fe": 55.845, "Cu": 63.546, "Zn": 65.38, "Se": 78.971, "Br": 79.904,
	"Sn": 118.710, "I": 126.904, "Pt": 195.084,
}

// vdwRadii holds Bondi van der Waals radii in ångströms, used by the shape
// grid and the embedding lower bounds.
var vdwRadii = map[string]float64{
	"H": 1.20, "C": 1.70, "N": 1.55, "O": 1.52, "F": 1.47,
	"P": 1.80, "S": 1.80, "Cl": 1.75, "Br": 1.85, "I": 1.98,
	"B": 1.92, "Si": 2.10, "Se": 1.90, "Zn": 1.39, "Fe": 2.05,
	"Cu": 2.00, "Mg": 1.73, "Na": 2.27, "K": 2.75, "Ca": 2.31,
}

// covalentRadii holds single-bond covalent radii in ångströms, used to
// estimate ideal bond lengths for the distance bounds matrix.
var covalentRadii = map[string]float64{
	"H": 0.31, "B": 0.84, "C": 0.76, "N": 0.71, "O": 0.66, "F": 0.57,
	"Si": 1.11, "P": 1.07, "S": 1.05, "Cl": 1.02, "Br": 1.20, "I": 1.39,
	"Se": 1.20, "Zn": 1.22, "Fe": 1.32, "Cu": 1.32, "Mg": 1.41,
	"Na": 1.66, "K": 2.03, "Ca": 1.76,
}

// defaultValences holds the neutral-atom bonding capacity used for implicit
// hydrogen assignment. Elements absent from the table get no implicit
// hydrogens.
var defaultValences = map[string]int{
	"H": 1, "B": 3, "C": 4, "N": 3, "O": 2, "F": 1,
	"Si": 4, "P": 3, "S": 2, "Cl": 1, "Br": 1, "I": 1, "Se": 2,
}

// electronegativities holds Pauling electronegativities for the H-bond
// feature definitions.
var electronegativities = map[string]float64{
	"H": 2.20, "B": 2.04, "C": 2.55, "N": 3.04, "O": 3.44, "F": 3.98,
	"Si": 1.90, "P": 2.19, "S": 2.58, "Cl": 3.16, "Br": 2.96, "I": 2.66,
	"Se": 2.55, "Zn": 1.65,
}

// AtomicMass returns the standard atomic weight of the element, or carbon's
// when the element is unknown.
func AtomicMass(element string) float64 {
	if m, ok := atomicMasses[element]; ok {
		return m
	}
	return atomicMasses["C"]
}

// VdwRadius returns the van der Waals radius of the element, defaulting to
// carbon's 1.70 Å.
func VdwRadius(element string) float64 {
	if r, ok := vdwRadii[element]; ok {
		return r
	}
	return 1.70
}

// CovalentRadius returns the single-bond covalent radius, defaulting to
// 0.75 Å.
func CovalentRadius(element string) float64 {
	if r, ok := covalentRadii[element]; ok {
		return r
	}
	return 0.75
}

// DefaultValence returns the neutral bonding capacity and whether the
// element has one defined.
func DefaultValence(element string) (int, bool) {
	v, ok := defaultValences[element]
	return v, ok
}

// Electronegativity returns the Pauling electronegativity, defaulting to
// carbon's.
func Electronegativity(element string) float64 {
	if e, ok := electronegativities[element]; ok {
		return e
	}
	return electronegativities["C"]
}

// IsMetal reports whether the element is one of the metals recognised by the
// zinc-binder feature family.
func IsMetal(element string) bool {
	switch element {
	case "Zn", "Fe", "Cu", "Mg", "Na", "K", "Ca", "Pt", "Sn":
		return true
	}
	return false
}
