// Package sdf reads and writes MDL SDF files (V2000 connection tables plus
// named data fields). Fragment libraries and elaboration candidate sets are
// exchanged in this format, so the reader keeps every `> <tag>` data field on
// the parsed molecule verbatim.
package sdf

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// maxLineBytes bounds a single SDF line; data field values can be long.
const maxLineBytes = 1 << 20

// Reader streams molecules out of an SDF document. It is not safe for
// concurrent use.
type Reader struct {
	sc   *bufio.Scanner
	line int
	mols int
	done bool
}

// NewReader wraps r in a streaming SDF reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// ReadAll consumes r to the end and returns every molecule in file order.
func ReadAll(r io.Reader) ([]*mol.Mol, error) {
	sr := NewReader(r)
	var out []*mol.Mol
	for {
		m, err := sr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
}

// ReadFile reads every molecule from the SDF file at path.
func ReadFile(path string) ([]*mol.Mol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStructureParse, "open %s", path)
	}
	defer f.Close()

	out, err := ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, errors.GetCode(err), "read %s", path)
	}
	return out, nil
}

// Next parses and returns the next molecule, or io.EOF after the last one.
// Parsed molecules have rings, aromaticity, and implicit hydrogens perceived.
func (r *Reader) Next() (*mol.Mol, error) {
	if r.done {
		return nil, io.EOF
	}

	// Header block: name, program, comment.
	name, ok := r.scan()
	if !ok {
		r.done = true
		return nil, io.EOF
	}
	if _, ok := r.scan(); !ok {
		return nil, r.errf("unexpected end of input in header")
	}
	if _, ok := r.scan(); !ok {
		return nil, r.errf("unexpected end of input in header")
	}

	counts, ok := r.scan()
	if !ok {
		return nil, r.errf("missing counts line")
	}
	if len(counts) < 6 {
		return nil, r.errf("counts line too short: %q", counts)
	}
	numAtoms, err := parseInt(counts[0:3])
	if err != nil {
		return nil, r.errf("bad atom count %q", counts[0:3])
	}
	numBonds, err := parseInt(counts[3:6])
	if err != nil {
		return nil, r.errf("bad bond count %q", counts[3:6])
	}
	if len(counts) >= 39 && !strings.Contains(counts[33:39], "V2000") {
		return nil, r.errf("unsupported connection table version %q", strings.TrimSpace(counts[33:39]))
	}

	m := mol.NewMol(strings.TrimSpace(name))
	coords := make([]geom.Vec3, 0, numAtoms)

	for i := 0; i < numAtoms; i++ {
		line, ok := r.scan()
		if !ok {
			return nil, r.errf("unexpected end of input in atom block (%d of %d)", i, numAtoms)
		}
		if len(line) < 34 {
			return nil, r.errf("atom line too short: %q", line)
		}
		x, errX := parseFloat(line[0:10])
		y, errY := parseFloat(line[10:20])
		z, errZ := parseFloat(line[20:30])
		if errX != nil || errY != nil || errZ != nil {
			return nil, r.errf("bad coordinates on atom line %q", line)
		}
		elem := strings.TrimSpace(line[31:34])
		if elem == "" {
			return nil, r.errf("missing element symbol on atom line %q", line)
		}
		a := mol.Atom{Element: elem}
		if len(line) >= 39 {
			if code, err := parseInt(line[36:39]); err == nil {
				a.Charge = chargeFromCode(code)
			}
		}
		m.AddAtom(a)
		coords = append(coords, geom.Vec3{x, y, z})
	}

	for i := 0; i < numBonds; i++ {
		line, ok := r.scan()
		if !ok {
			return nil, r.errf("unexpected end of input in bond block (%d of %d)", i, numBonds)
		}
		if len(line) < 9 {
			return nil, r.errf("bond line too short: %q", line)
		}
		from, errF := parseInt(line[0:3])
		to, errT := parseInt(line[3:6])
		order, errO := parseInt(line[6:9])
		if errF != nil || errT != nil || errO != nil {
			return nil, r.errf("bad bond line %q", line)
		}
		bo, err := bondOrderFromCT(order)
		if err != nil {
			return nil, r.errf("bond line %q: %v", line, err)
		}
		if err := m.AddBond(from-1, to-1, bo); err != nil {
			return nil, r.errf("bond line %q: %v", line, err)
		}
	}

	if err := r.readProperties(m); err != nil {
		return nil, err
	}
	if err := r.readDataFields(m); err != nil {
		return nil, err
	}

	if _, err := m.AddConformer(coords); err != nil {
		return nil, errors.New(errors.ErrCodeStructureParse, "conformer mismatch").WithCause(err)
	}
	m.Perceive()
	r.mols++
	return m, nil
}

// readProperties consumes the property block through `M  END`. Charge and
// isotope property lines override the atom block per MDL semantics: the
// first M CHG or M ISO seen resets that field on every atom.
func (r *Reader) readProperties(m *mol.Mol) error {
	resetCharges := false
	resetIsotopes := false
	for {
		line, ok := r.scan()
		if !ok {
			// Single-molecule files sometimes end at the connection table.
			r.done = true
			return nil
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "M  END" || trimmed == "M END":
			return nil
		case trimmed == "$$$$":
			// No property block at all; treat as end of record.
			return nil
		case strings.HasPrefix(line, "M  CHG"):
			if !resetCharges {
				for i := range m.Atoms {
					m.Atoms[i].Charge = 0
				}
				resetCharges = true
			}
			if err := applyAtomValues(line, m, func(a *mol.Atom, v int) { a.Charge = v }); err != nil {
				return r.errf("bad M CHG line %q: %v", line, err)
			}
		case strings.HasPrefix(line, "M  ISO"):
			if !resetIsotopes {
				for i := range m.Atoms {
					m.Atoms[i].Isotope = 0
				}
				resetIsotopes = true
			}
			if err := applyAtomValues(line, m, func(a *mol.Atom, v int) { a.Isotope = v }); err != nil {
				return r.errf("bad M ISO line %q: %v", line, err)
			}
		default:
			// Other property lines (M  RAD, A, V, ...) are skipped.
		}
	}
}

// readDataFields consumes `> <tag>` blocks until the `$$$$` record
// terminator or end of input.
func (r *Reader) readDataFields(m *mol.Mol) error {
	for {
		line, ok := r.scan()
		if !ok {
			r.done = true
			return nil
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "$$$$":
			return nil
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, ">"):
			tag := dataFieldName(trimmed)
			if tag == "" {
				return r.errf("malformed data header %q", line)
			}
			var values []string
			for {
				v, ok := r.scan()
				if !ok {
					r.done = true
					m.SetTag(tag, strings.Join(values, "\n"))
					return nil
				}
				if strings.TrimSpace(v) == "" {
					break
				}
				if strings.TrimSpace(v) == "$$$$" {
					m.SetTag(tag, strings.Join(values, "\n"))
					return nil
				}
				values = append(values, v)
			}
			m.SetTag(tag, strings.Join(values, "\n"))
		default:
			return r.errf("unexpected content between records: %q", line)
		}
	}
}

func (r *Reader) scan() (string, bool) {
	if !r.sc.Scan() {
		return "", false
	}
	r.line++
	return r.sc.Text(), true
}

func (r *Reader) errf(format string, args ...interface{}) error {
	e := errors.Newf(errors.ErrCodeStructureParse, format, args...)
	return e.WithDetailf("line=%d molecule=%d", r.line, r.mols)
}

// dataFieldName extracts the tag from a `>  <name>` header. Registry-style
// headers like `> 25 <name> (comment)` are also accepted.
func dataFieldName(header string) string {
	open := strings.Index(header, "<")
	if open < 0 {
		return ""
	}
	close := strings.Index(header[open:], ">")
	if close < 0 {
		return ""
	}
	return strings.TrimSpace(header[open+1 : open+close])
}

// applyAtomValues parses the (atom, value) pairs of an M CHG / M ISO line.
func applyAtomValues(line string, m *mol.Mol, set func(*mol.Atom, int)) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return errors.New(errors.ErrCodeStructureParse, "too few fields")
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil {
		return errors.Newf(errors.ErrCodeStructureParse, "bad entry count %q", fields[2])
	}
	pairs := fields[3:]
	if len(pairs) < 2*n {
		return errors.Newf(errors.ErrCodeStructureParse, "expected %d pairs, got %d fields", n, len(pairs))
	}
	for i := 0; i < n; i++ {
		idx, err1 := strconv.Atoi(pairs[2*i])
		val, err2 := strconv.Atoi(pairs[2*i+1])
		if err1 != nil || err2 != nil {
			return errors.New(errors.ErrCodeStructureParse, "non-numeric pair")
		}
		if idx < 1 || idx > len(m.Atoms) {
			return errors.Newf(errors.ErrCodeStructureParse, "atom index %d out of range", idx)
		}
		set(&m.Atoms[idx-1], val)
	}
	return nil
}

// chargeFromCode maps the legacy atom-block charge column to a formal charge.
func chargeFromCode(code int) int {
	switch code {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	case 5:
		return -1
	case 6:
		return -2
	case 7:
		return -3
	default:
		return 0
	}
}

func bondOrderFromCT(order int) (mol.BondOrder, error) {
	switch order {
	case 1, 2, 3, 4:
		return mol.BondOrder(order), nil
	default:
		return 0, errors.Newf(errors.ErrCodeStructureParse, "unsupported bond type %d", order)
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
