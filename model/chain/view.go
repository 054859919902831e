package chain

// ViewKind describes what the local node knows about a view.
type ViewKind int

const (
	// ViewDa means the DA payload for the view is known but no leaf was accepted yet.
	ViewDa ViewKind = iota + 1
	// ViewLeaf means a leaf was accepted for the view.
	ViewLeaf
	// ViewFailed means the view timed out without a leaf.
	ViewFailed
)

func (k ViewKind) String() string {
	switch k {
	case ViewDa:
		return "da"
	case ViewLeaf:
		return "leaf"
	case ViewFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ViewInner is the per-view entry of the consensus state.
type ViewInner struct {
	Kind              ViewKind
	PayloadCommitment Commitment
	LeafCommitment    Commitment
	Epoch             Epoch
}
