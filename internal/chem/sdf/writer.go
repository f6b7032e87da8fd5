package sdf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// v2000MaxAtoms is the hard limit of the fixed-width V2000 counts line.
const v2000MaxAtoms = 999

// Writer emits molecules as SDF records. Call Flush before the underlying
// writer is closed.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w in an SDF writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record using the molecule's first conformer. Molecules
// without coordinates are written with zeroed positions.
func (w *Writer) Write(m *mol.Mol) error {
	coords := make([]geom.Vec3, m.NumAtoms())
	if m.NumConformers() > 0 {
		c, err := m.Conformer(0)
		if err != nil {
			return err
		}
		coords = c
	}
	return w.writeRecord(m, coords)
}

// WriteConformer appends one record using the conformer at index confID.
func (w *Writer) WriteConformer(m *mol.Mol, confID int) error {
	coords, err := m.Conformer(confID)
	if err != nil {
		return err
	}
	return w.writeRecord(m, coords)
}

// Flush writes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteAll writes mols to w and flushes.
func WriteAll(w io.Writer, mols []*mol.Mol) error {
	sw := NewWriter(w)
	for _, m := range mols {
		if err := sw.Write(m); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// WriteFile writes mols to the file at path, replacing any existing content.
func WriteFile(path string, mols []*mol.Mol) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeObjectStore, "create %s", path)
	}
	defer f.Close()

	if err := WriteAll(f, mols); err != nil {
		return err
	}
	return f.Close()
}

// ToMolBlock renders the connection table (through `M  END`) for one
// conformer, without data fields or the record terminator.
func ToMolBlock(m *mol.Mol, confID int) (string, error) {
	coords, err := m.Conformer(confID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := writeConnectionTable(&sb, m, coords); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (w *Writer) writeRecord(m *mol.Mol, coords []geom.Vec3) error {
	if err := writeConnectionTable(w.w, m, coords); err != nil {
		return err
	}

	// Data fields in sorted order, so output is stable across runs.
	tags := m.Tags()
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w.w, ">  <%s>\n%s\n\n", k, tags[k])
	}

	_, err := w.w.WriteString("$$$$\n")
	return err
}

func writeConnectionTable(w io.Writer, m *mol.Mol, coords []geom.Vec3) error {
	if m.NumAtoms() > v2000MaxAtoms {
		return errors.Newf(errors.ErrCodeInvalidStructure,
			"%d atoms exceeds the V2000 limit of %d", m.NumAtoms(), v2000MaxAtoms)
	}
	if len(coords) != m.NumAtoms() {
		return errors.Newf(errors.ErrCodeInvalidStructure,
			"%d coordinates for %d atoms", len(coords), m.NumAtoms())
	}

	fmt.Fprintf(w, "%s\n  fragelab          3D\n\n", m.Name)
	fmt.Fprintf(w, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", m.NumAtoms(), m.NumBonds())

	for i, a := range m.Atoms {
		p := coords[i]
		fmt.Fprintf(w, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n",
			p[0], p[1], p[2], a.Element)
	}
	for _, b := range m.Bonds {
		fmt.Fprintf(w, "%3d%3d%3d  0\n", b.From+1, b.To+1, int(b.Order))
	}

	writeAtomValueLines(w, "CHG", m, func(a mol.Atom) int { return a.Charge })
	writeAtomValueLines(w, "ISO", m, func(a mol.Atom) int { return a.Isotope })

	_, err := io.WriteString(w, "M  END\n")
	return err
}

// writeAtomValueLines emits M CHG / M ISO property lines for atoms with a
// nonzero value, at most eight pairs per line.
func writeAtomValueLines(w io.Writer, prop string, m *mol.Mol, value func(mol.Atom) int) {
	type pair struct{ idx, val int }
	var pairs []pair
	for i, a := range m.Atoms {
		if v := value(a); v != 0 {
			pairs = append(pairs, pair{i + 1, v})
		}
	}
	for start := 0; start < len(pairs); start += 8 {
		end := start + 8
		if end > len(pairs) {
			end = len(pairs)
		}
		fmt.Fprintf(w, "M  %s%3d", prop, end-start)
		for _, p := range pairs[start:end] {
			fmt.Fprintf(w, "%4d%4d", p.idx, p.val)
		}
		io.WriteString(w, "\n")
	}
}
