package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/hotshot-go/hotshot/model/chain"
)

// DaRecord is a stored DA proposal with the VID commitment of its payload.
type DaRecord struct {
	Proposal   *chain.Proposal[*chain.DaProposal]
	Commitment chain.Commitment
}

func UpsertAnchorLeaf(leaf *chain.Leaf) func(*badger.Txn) error {
	return upsert(makePrefix(codeAnchorLeaf), leaf)
}

func RetrieveAnchorLeaf(leaf *chain.Leaf) func(*badger.Txn) error {
	return retrieve(makePrefix(codeAnchorLeaf), leaf)
}

func UpsertHighQC(qc *chain.QuorumCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeHighQC), qc)
}

func RetrieveHighQC(qc *chain.QuorumCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHighQC), qc)
}

func UpsertNextEpochHighQC(qc *chain.NextEpochQuorumCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeNextEpochHighQC), qc)
}

func RetrieveNextEpochHighQC(qc *chain.NextEpochQuorumCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeNextEpochHighQC), qc)
}

// InsertUpgradeCert stores the decided upgrade certificate. There is only ever one.
func InsertUpgradeCert(cert *chain.UpgradeCertificate) func(*badger.Txn) error {
	return insert(makePrefix(codeUpgradeCert), cert)
}

func RetrieveUpgradeCert(cert *chain.UpgradeCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeUpgradeCert), cert)
}

func UpsertStateCert(cert *chain.LightClientStateUpdateCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeStateCert), cert)
}

func RetrieveStateCert(cert *chain.LightClientStateUpdateCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeStateCert), cert)
}

func UpsertActionedView(view uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeActionedView), view)
}

func RetrieveActionedView(view *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeActionedView), view)
}

func UpsertQuorumProposal(proposal *chain.Proposal[*chain.QuorumProposal]) func(*badger.Txn) error {
	return upsert(makePrefix(codeQuorumProposal, proposal.Data.View), proposal)
}

// TraverseQuorumProposals calls handle for every stored proposal in view order.
func TraverseQuorumProposals(handle func(*chain.Proposal[*chain.QuorumProposal]) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeQuorumProposal),
		func() interface{} { return new(chain.Proposal[*chain.QuorumProposal]) },
		func(_ []byte, entity interface{}) error {
			return handle(entity.(*chain.Proposal[*chain.QuorumProposal]))
		})
}

func UpsertVidShare(share *chain.VidShare) func(*badger.Txn) error {
	return upsert(makePrefix(codeVidShare, share.View), share)
}

func TraverseVidShares(handle func(*chain.VidShare) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeVidShare),
		func() interface{} { return new(chain.VidShare) },
		func(_ []byte, entity interface{}) error {
			return handle(entity.(*chain.VidShare))
		})
}

func UpsertDaProposal(record *DaRecord) func(*badger.Txn) error {
	return upsert(makePrefix(codeDaProposal, record.Proposal.Data.View), record)
}

func TraverseDaProposals(handle func(*DaRecord) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeDaProposal),
		func() interface{} { return new(DaRecord) },
		func(_ []byte, entity interface{}) error {
			return handle(entity.(*DaRecord))
		})
}

func UpsertDecidedLeaf(leaf *chain.Leaf) func(*badger.Txn) error {
	return upsert(makePrefix(codeDecidedLeaf, leaf.View), leaf)
}

func RetrieveDecidedLeaf(view uint64, leaf *chain.Leaf) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDecidedLeaf, view), leaf)
}

// PruneBelowView removes proposals, VID shares and DA proposals of views below the given one.
func PruneBelowView(view uint64) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		for _, code := range []byte{codeQuorumProposal, codeVidShare, codeDaProposal} {
			if err := removeBelow(code, view)(tx); err != nil {
				return err
			}
		}
		return nil
	}
}

func UpsertDrbResult(epoch uint64, result chain.DrbResult) func(*badger.Txn) error {
	return upsert(makePrefix(codeDrbResult, epoch), result)
}

func TraverseDrbResults(handle func(epoch uint64, result chain.DrbResult) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeDrbResult),
		func() interface{} { return new(chain.DrbResult) },
		func(key []byte, entity interface{}) error {
			return handle(indexFromKey(key), *entity.(*chain.DrbResult))
		})
}

func UpsertDrbInput(input chain.DrbInput) func(*badger.Txn) error {
	return upsert(makePrefix(codeDrbInput, input.Epoch), input)
}

func RetrieveDrbInput(epoch uint64, input *chain.DrbInput) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDrbInput, epoch), input)
}
