// Package fragment holds the wire types of the fragment-library API surface,
// shared by the HTTP handlers and the Go SDK.
package fragment

// Info is one library fragment as listed by GET /api/v1/fragments.
type Info struct {
	Name       string  `json:"name"`
	Formula    string  `json:"formula"`
	HeavyAtoms int     `json:"heavy_atoms"`
	MolWeight  float64 `json:"mol_weight"`
}

// ResolveRequest maps an elaboration mode and a fragment selection to its
// canonical key. Exactly one of Names and Indices must be set; Indices are
// zero-based library positions.
type ResolveRequest struct {
	Mode    string   `json:"mode"`
	Names   []string `json:"names,omitempty"`
	Indices []int    `json:"indices,omitempty"`
}

// ResolveResponse is the canonical elaboration key for a valid selection.
// Names come back sorted for link mode, so equal selections always produce
// an equal Filename.
type ResolveResponse struct {
	Mode     string   `json:"mode"`
	Names    []string `json:"names"`
	Key      string   `json:"key"`
	Filename string   `json:"filename"`
}
