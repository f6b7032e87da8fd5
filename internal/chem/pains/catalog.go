package pains

import (
	"github.com/molforge/fragelab/internal/chem/mol"
)

// Pattern is one named interference pattern.
type Pattern struct {
	Name   string
	Smarts string
	query  *Query
}

// Catalog is a named group of patterns. The default screen uses the three
// standard sub-catalogs A (frequent hitters), B, and C.
type Catalog struct {
	Name     string
	Patterns []Pattern
}

func pattern(name, smarts string) Pattern {
	return Pattern{Name: name, Smarts: smarts, query: MustParseSmarts(smarts)}
}

// defaultCatalogs holds the curated pattern set. The selection covers the
// classic interference chemotypes expressible in the restricted dialect;
// names follow the usual family_catalog convention.
var defaultCatalogs = []Catalog{
	{
		Name: "pains_a",
		Patterns: []Pattern{
			pattern("quinone_A", "O=C1C=CC(=O)C=C1"),
			pattern("catechol_A", "[OH]c1ccccc1[OH]"),
			pattern("azo_A", "cN=Nc"),
			pattern("hzone_phenol_A", "[OH]c1ccccc1C=NN"),
			pattern("mannich_A", "[OH]c1ccccc1CN"),
		},
	},
	{
		Name: "pains_b",
		Patterns: []Pattern{
			pattern("rhodanine_B", "O=C1CSC(=S)N1"),
			pattern("ene_one_B", "C=CC(=O)C=C"),
			pattern("thio_urea_B", "NC(=S)N"),
			pattern("imine_one_B", "O=CC=N"),
		},
	},
	{
		Name: "pains_c",
		Patterns: []Pattern{
			pattern("anil_di_alk_C", "CN(C)c1ccccc1"),
			pattern("hydroxamic_C", "O=CNO"),
			pattern("acyl_hzone_C", "O=CNN=C"),
			pattern("azide_C", "N=[N+]=[N-]"),
		},
	},
}

// Defaults returns the curated sub-catalogs. The slice is shared; callers
// must not mutate it.
func Defaults() []Catalog {
	return defaultCatalogs
}

// Matches returns the names of every pattern in the catalog that embeds in m.
func (c Catalog) Matches(m *mol.Mol) []string {
	var hits []string
	for _, p := range c.Patterns {
		if p.query.Matches(m) {
			hits = append(hits, p.Name)
		}
	}
	return hits
}

// Screen runs m against every catalog and returns all matched pattern names.
// A clean structure returns an empty slice.
func Screen(m *mol.Mol, catalogs []Catalog) []string {
	var hits []string
	for _, c := range catalogs {
		hits = append(hits, c.Matches(m)...)
	}
	return hits
}

// IsClean reports whether m matches no pattern in the default catalogs.
func IsClean(m *mol.Mol) bool {
	for _, c := range defaultCatalogs {
		for _, p := range c.Patterns {
			if p.query.Matches(m) {
				return false
			}
		}
	}
	return true
}
