package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/storage"
	"github.com/hotshot-go/hotshot/storage/badger/operation"
)

// Persister stores the consensus state of a node in BadgerDB.
//
// Proposals, VID shares and DA proposals are kept from the anchor view on; they are pruned
// whenever decided leaves move the anchor.
type Persister struct {
	log zerolog.Logger
	db  *badger.DB
}

var _ hotshot.Persister = (*Persister)(nil)

func NewPersister(log zerolog.Logger, db *badger.DB) *Persister {
	return &Persister{
		log: log.With().Str("component", "persister").Logger(),
		db:  db,
	}
}

func (p *Persister) update(ctx context.Context, op func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return operation.RetryOnConflict(p.db, op)
}

func (p *Persister) AppendDa(ctx context.Context, proposal *chain.Proposal[*chain.DaProposal], commitment chain.Commitment) error {
	err := p.update(ctx, operation.UpsertDaProposal(&operation.DaRecord{Proposal: proposal, Commitment: commitment}))
	if err != nil {
		return fmt.Errorf("could not store da proposal of view %d: %w", proposal.Data.View, err)
	}
	return nil
}

func (p *Persister) AppendVid(ctx context.Context, share *chain.VidShare) error {
	if err := p.update(ctx, operation.UpsertVidShare(share)); err != nil {
		return fmt.Errorf("could not store vid share of view %d: %w", share.View, err)
	}
	return nil
}

func (p *Persister) AppendQuorumProposal(ctx context.Context, proposal *chain.Proposal[*chain.QuorumProposal]) error {
	if err := p.update(ctx, operation.UpsertQuorumProposal(proposal)); err != nil {
		return fmt.Errorf("could not store quorum proposal of view %d: %w", proposal.Data.View, err)
	}
	return nil
}

// AppendDecidedLeaves stores the leaves, moves the anchor to the newest of them and prunes
// everything older than the anchor.
func (p *Persister) AppendDecidedLeaves(ctx context.Context, view uint64, leaves []*chain.Leaf) error {
	if len(leaves) == 0 {
		return nil
	}
	anchor := leaves[0]
	for _, leaf := range leaves[1:] {
		if leaf.View > anchor.View {
			anchor = leaf
		}
	}
	err := p.update(ctx, func(tx *badger.Txn) error {
		for _, leaf := range leaves {
			if err := operation.UpsertDecidedLeaf(leaf)(tx); err != nil {
				return fmt.Errorf("could not store leaf of view %d: %w", leaf.View, err)
			}
		}
		var current chain.Leaf
		err := operation.RetrieveAnchorLeaf(&current)(tx)
		if err == nil && current.View >= anchor.View {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read anchor leaf: %w", err)
		}
		if err := operation.UpsertAnchorLeaf(anchor)(tx); err != nil {
			return fmt.Errorf("could not store anchor leaf: %w", err)
		}
		return operation.PruneBelowView(anchor.View)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not append leaves decided in view %d: %w", view, err)
	}
	p.log.Debug().Uint64("anchor_view", anchor.View).Int("leaves", len(leaves)).Msg("decided leaves stored")
	return nil
}

func (p *Persister) UpdateDecidedUpgradeCertificate(ctx context.Context, cert *chain.UpgradeCertificate) error {
	if err := p.update(ctx, operation.SkipDuplicates(operation.InsertUpgradeCert(cert))); err != nil {
		return fmt.Errorf("could not store decided upgrade certificate: %w", err)
	}
	return nil
}

// UpdateHighQC stores the QC unless a QC of a higher view is stored already.
func (p *Persister) UpdateHighQC(ctx context.Context, qc *chain.QuorumCertificate) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var current chain.QuorumCertificate
		err := operation.RetrieveHighQC(&current)(tx)
		if err == nil && current.View > qc.View {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertHighQC(qc)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store high qc of view %d: %w", qc.View, err)
	}
	return nil
}

func (p *Persister) UpdateNextEpochHighQC(ctx context.Context, qc *chain.NextEpochQuorumCertificate) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var current chain.NextEpochQuorumCertificate
		err := operation.RetrieveNextEpochHighQC(&current)(tx)
		if err == nil && current.View > qc.View {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertNextEpochHighQC(qc)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not store next epoch high qc of view %d: %w", qc.View, err)
	}
	return nil
}

func (p *Persister) UpdateStateCert(ctx context.Context, cert *chain.LightClientStateUpdateCertificate) error {
	if err := p.update(ctx, operation.UpsertStateCert(cert)); err != nil {
		return fmt.Errorf("could not store state certificate: %w", err)
	}
	return nil
}

// RecordActionedView stores the view unless a later one is stored already.
func (p *Persister) RecordActionedView(ctx context.Context, view uint64) error {
	err := p.update(ctx, func(tx *badger.Txn) error {
		var current uint64
		err := operation.RetrieveActionedView(&current)(tx)
		if err == nil && current >= view {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertActionedView(view)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not record actioned view %d: %w", view, err)
	}
	return nil
}

func (p *Persister) AddDrbResult(ctx context.Context, epoch uint64, result chain.DrbResult) error {
	if err := p.update(ctx, operation.UpsertDrbResult(epoch, result)); err != nil {
		return fmt.Errorf("could not store drb result of epoch %d: %w", epoch, err)
	}
	return nil
}

func (p *Persister) StoreDrbInput(ctx context.Context, input chain.DrbInput) error {
	if err := p.update(ctx, operation.UpsertDrbInput(input)); err != nil {
		return fmt.Errorf("could not store drb checkpoint of epoch %d: %w", input.Epoch, err)
	}
	return nil
}

func (p *Persister) LoadDrbInput(ctx context.Context, epoch uint64) (chain.DrbInput, bool, error) {
	if err := ctx.Err(); err != nil {
		return chain.DrbInput{}, false, err
	}
	var input chain.DrbInput
	err := p.db.View(operation.RetrieveDrbInput(epoch, &input))
	if errors.Is(err, storage.ErrNotFound) {
		return chain.DrbInput{}, false, nil
	}
	if err != nil {
		return chain.DrbInput{}, false, fmt.Errorf("could not load drb checkpoint of epoch %d: %w", epoch, err)
	}
	return input, true, nil
}

// LoadConsensusState reads back everything stored. It returns nil if no leaf was ever decided.
func (p *Persister) LoadConsensusState(ctx context.Context) (*hotshot.RecoveredState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state := &hotshot.RecoveredState{
		Proposals:           make(map[uint64]*chain.Proposal[*chain.QuorumProposal]),
		VidShares:           make(map[uint64]*chain.VidShare),
		DrbResults:          make(map[uint64]chain.DrbResult),
		SavedDaPayloads:     make(map[uint64]chain.Commitment),
		SavedDaProposalData: make(map[uint64]*chain.Proposal[*chain.DaProposal]),
	}
	err := p.db.View(func(tx *badger.Txn) error {
		var anchor chain.Leaf
		err := operation.RetrieveAnchorLeaf(&anchor)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			state = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read anchor leaf: %w", err)
		}
		state.AnchorLeaf = &anchor

		var highQC chain.QuorumCertificate
		if found, err := found(operation.RetrieveHighQC(&highQC)(tx)); err != nil {
			return fmt.Errorf("could not read high qc: %w", err)
		} else if found {
			state.HighQC = &highQC
		}
		var nextQC chain.NextEpochQuorumCertificate
		if found, err := found(operation.RetrieveNextEpochHighQC(&nextQC)(tx)); err != nil {
			return fmt.Errorf("could not read next epoch high qc: %w", err)
		} else if found {
			state.NextEpochHighQC = &nextQC
		}
		var upgrade chain.UpgradeCertificate
		if found, err := found(operation.RetrieveUpgradeCert(&upgrade)(tx)); err != nil {
			return fmt.Errorf("could not read upgrade certificate: %w", err)
		} else if found {
			state.DecidedUpgradeCert = &upgrade
		}
		var stateCert chain.LightClientStateUpdateCertificate
		if found, err := found(operation.RetrieveStateCert(&stateCert)(tx)); err != nil {
			return fmt.Errorf("could not read state certificate: %w", err)
		} else if found {
			state.StateCert = &stateCert
		}
		if err := optional(operation.RetrieveActionedView(&state.LastActionedView)(tx)); err != nil {
			return fmt.Errorf("could not read actioned view: %w", err)
		}

		err = operation.TraverseQuorumProposals(func(proposal *chain.Proposal[*chain.QuorumProposal]) error {
			state.Proposals[proposal.Data.View] = proposal
			return nil
		})(tx)
		if err != nil {
			return err
		}
		err = operation.TraverseVidShares(func(share *chain.VidShare) error {
			state.VidShares[share.View] = share
			return nil
		})(tx)
		if err != nil {
			return err
		}
		err = operation.TraverseDaProposals(func(record *operation.DaRecord) error {
			view := record.Proposal.Data.View
			state.SavedDaPayloads[view] = record.Commitment
			state.SavedDaProposalData[view] = record.Proposal
			return nil
		})(tx)
		if err != nil {
			return err
		}
		return operation.TraverseDrbResults(func(epoch uint64, result chain.DrbResult) error {
			state.DrbResults[epoch] = result
			return nil
		})(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not load consensus state: %w", err)
	}
	return state, nil
}

func found(err error) (bool, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func optional(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
