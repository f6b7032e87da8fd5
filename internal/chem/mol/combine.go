package mol

import "github.com/molforge/fragelab/internal/chem/geom"

// Combine returns a new molecule holding both inputs as disconnected
// components: b's atoms and bonds appended after a's with indices offset.
// When both inputs carry coordinates, the first conformer of each is joined
// into a single conformer; otherwise the result has none. The inputs are not
// modified.
func Combine(a, b *Mol) *Mol {
	out := NewMol(a.Name + "+" + b.Name)

	out.Atoms = make([]Atom, 0, len(a.Atoms)+len(b.Atoms))
	out.Atoms = append(out.Atoms, a.Atoms...)
	out.Atoms = append(out.Atoms, b.Atoms...)

	offset := len(a.Atoms)
	out.Bonds = make([]Bond, 0, len(a.Bonds)+len(b.Bonds))
	out.Bonds = append(out.Bonds, a.Bonds...)
	for _, bond := range b.Bonds {
		bond.From += offset
		bond.To += offset
		out.Bonds = append(out.Bonds, bond)
	}

	if a.NumConformers() > 0 && b.NumConformers() > 0 {
		ca, _ := a.Conformer(0)
		cb, _ := b.Conformer(0)
		joint := make([]geom.Vec3, 0, len(ca)+len(cb))
		joint = append(joint, ca...)
		joint = append(joint, cb...)
		out.confs = append(out.confs, joint)
	}

	out.Perceive()
	return out
}
