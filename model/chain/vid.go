package chain

// VidCommon is the information every share holder needs to verify and reconstruct a payload.
type VidCommon struct {
	PayloadLength uint64
	DataShards    uint32
	ParityShards  uint32
	// ShardHashes holds the hash of every shard, in shard order.
	ShardHashes []Commitment
	// MetadataHash commits to the payload metadata.
	MetadataHash Commitment
}

// VidShare is the part of a dispersed payload assigned to a single recipient.
type VidShare struct {
	View              uint64
	Epoch             Epoch
	TargetEpoch       Epoch
	Recipient         NodeID
	PayloadCommitment Commitment
	Common            VidCommon
	// FirstIndex is the shard index of Shards[0]; recipients get one shard per unit of weight.
	FirstIndex uint32
	Shards     [][]byte
}

// VidDisperse is the leader's full dispersal of a payload across a committee.
type VidDisperse struct {
	View              uint64
	Epoch             Epoch
	TargetEpoch       Epoch
	PayloadCommitment Commitment
	Common            VidCommon
	Shares            map[NodeID]*VidShare
}
