package runes

// Cenotaph is a malformed runestone. Input runes and the minted
// amount are burned, and an etching still reserves its name but is
// created unmintable.
type Cenotaph struct {
	Etching *Rune
	Flaw    Flaw
	Mint    *RuneId
}

// Artifact is the decoding of a transaction that carries a protocol
// message: exactly one of Runestone or Cenotaph is set.
type Artifact struct {
	Runestone *Runestone
	Cenotaph  *Cenotaph
}

// Mint returns the mint target of either form, or nil.
func (a *Artifact) Mint() *RuneId {
	if a.Cenotaph != nil {
		return a.Cenotaph.Mint
	}
	return a.Runestone.Mint
}
