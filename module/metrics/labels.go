package metrics

const (
	LabelTask     = "task"
	LabelEvent    = "event"
	LabelOutcome  = "outcome"
	LabelKind     = "kind"
	LabelReason   = "reason"
	LabelBuilder  = "builder"
	LabelResource = "resource"
)

// Certificate kinds
const (
	KindQuorum          = "quorum"
	KindNextEpochQuorum = "next_epoch_quorum"
	KindDa              = "da"
	KindTimeout         = "timeout"
	KindViewSync        = "view_sync"
	KindUpgrade         = "upgrade"
)

// Mempool resources
const (
	ResourcePendingTransactions = "pending_transactions"
	ResourceDecidedTransactions = "decided_transactions"
)

// Vote rejection reasons
const (
	ReasonDoubleVote       = "double_vote"
	ReasonInvalidSignature = "invalid_signature"
	ReasonNoStakeTable     = "no_stake_table"
)
