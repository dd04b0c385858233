// Package signal defines the per-kind edge model shared by the signal
// producers (structural builder, history miner, semantic pass) and the
// fusion stage.
package signal

// Kind tags an edge with the signal that produced it.
type Kind string

const (
	Semantic   Kind = "semantic"
	Structural Kind = "structural"
	Temporal   Kind = "temporal"
	CoMod      Kind = "co-modification"
)

// Edge is a weighted relation between two units. Structural edges are
// directed (From references To); temporal and co-modification edges are
// symmetric by construction and stored with From < To.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Kind   Kind    `json:"kind"`
	Weight float64 `json:"weight"` // in [0,1]
}

// PairKey returns the unordered pair identifier "a|b" with the
// endpoints in lexicographic order.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// OrderPair returns the endpoints in lexicographic order.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
