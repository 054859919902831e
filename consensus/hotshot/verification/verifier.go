package verification

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/consensus/hotshot/model"
	"github.com/hotshot-go/hotshot/crypto"
	"github.com/hotshot-go/hotshot/model/chain"
)

// ErrInvalidSigner is returned when a signature is attributed to a node without stake.
var ErrInvalidSigner = errors.New("signer has no stake")

const keyCacheSize = 4096

// Verifier checks votes, proposals and certificates against the membership oracle.
// Decoded staking keys are cached, since the same keys are verified over and over.
type Verifier struct {
	membership hotshot.Membership
	keys       *lru.Cache[string, *crypto.StakingPublicKey]
}

// NewVerifier creates a Verifier.
func NewVerifier(membership hotshot.Membership) *Verifier {
	keys, err := lru.New[string, *crypto.StakingPublicKey](keyCacheSize)
	if err != nil {
		panic(fmt.Sprintf("could not create key cache: %v", err))
	}
	return &Verifier{membership: membership, keys: keys}
}

func (v *Verifier) publicKey(encoded []byte) (*crypto.StakingPublicKey, error) {
	if key, ok := v.keys.Get(string(encoded)); ok {
		return key, nil
	}
	key, err := crypto.DecodeStakingPublicKey(encoded)
	if err != nil {
		return nil, err
	}
	v.keys.Add(string(encoded), key)
	return key, nil
}

// VerifySignature checks a single staking signature of a stake table member over msg.
// Expected errors:
//   - ErrInvalidSigner if the signer has no stake in the table
//   - crypto.ErrInvalidSignature if the signature is invalid
func (v *Verifier) VerifySignature(table chain.StakeTable, signer chain.NodeID, msg []byte, sig []byte) error {
	entry, ok := table.Lookup(signer)
	if !ok || entry.Stake == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSigner, signer)
	}
	key, err := v.publicKey(entry.StakingKey)
	if err != nil {
		return fmt.Errorf("could not decode key of %v: %w", signer, err)
	}
	return key.Verify(msg, sig)
}

// verifyAggregate checks that distinct, staked signers with at least threshold stake signed msg.
func (v *Verifier) verifyAggregate(table chain.StakeTable, threshold uint64, signers []chain.NodeID, msg []byte, sig []byte) error {
	seen := make(map[chain.NodeID]struct{}, len(signers))
	keys := make([]*crypto.StakingPublicKey, 0, len(signers))
	var weight uint64
	for _, signer := range signers {
		if _, dup := seen[signer]; dup {
			return fmt.Errorf("duplicate signer %v", signer)
		}
		seen[signer] = struct{}{}
		entry, ok := table.Lookup(signer)
		if !ok || entry.Stake == 0 {
			return fmt.Errorf("%w: %v", ErrInvalidSigner, signer)
		}
		key, err := v.publicKey(entry.StakingKey)
		if err != nil {
			return fmt.Errorf("could not decode key of %v: %w", signer, err)
		}
		keys = append(keys, key)
		weight += entry.Stake
	}
	if weight < threshold {
		return fmt.Errorf("signers hold %d stake, below threshold %d", weight, threshold)
	}
	return crypto.VerifyAggregate(keys, msg, sig)
}

// VerifyVote checks a vote's signature against the stake table of the vote's epoch.
func VerifyVote[D chain.VoteData](v *Verifier, vote *chain.SimpleVote[D]) error {
	table, err := v.membership.StakeTable(vote.Epoch())
	if err != nil {
		return err
	}
	commitment := vote.Commitment()
	if err := v.VerifySignature(table, vote.Signer, commitment[:], vote.Signature); err != nil {
		return model.NewInvalidVoteErrorf(vote.View, vote.Signer, "%w", err)
	}
	return nil
}

// VerifyDaVote checks a DA vote against the DA committee.
func (v *Verifier) VerifyDaVote(vote *chain.DaVote) error {
	table, err := v.membership.DaStakeTable(vote.Epoch())
	if err != nil {
		return err
	}
	commitment := vote.Commitment()
	if err := v.VerifySignature(table, vote.Signer, commitment[:], vote.Signature); err != nil {
		return model.NewInvalidVoteErrorf(vote.View, vote.Signer, "%w", err)
	}
	return nil
}

func verifyCertificate[D chain.VoteData](v *Verifier, cert *chain.SimpleCertificate[D], table chain.StakeTable, threshold uint64) error {
	commitment := cert.Commitment()
	if err := v.verifyAggregate(table, threshold, cert.Signers, commitment[:], cert.Signature); err != nil {
		return model.NewInvalidCertificateErrorf(cert.View, "%w", err)
	}
	return nil
}

// VerifyQC checks a quorum certificate. The genesis QC is valid by definition.
func (v *Verifier) VerifyQC(qc *chain.QuorumCertificate) error {
	if qc.IsGenesis() {
		return nil
	}
	table, err := v.membership.StakeTable(qc.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.SuccessThreshold(qc.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, qc, table, threshold)
}

// VerifyNextEpochQC checks a certificate formed by the next epoch's committee.
func (v *Verifier) VerifyNextEpochQC(qc *chain.NextEpochQuorumCertificate) error {
	table, err := v.membership.StakeTable(qc.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.SuccessThreshold(qc.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, qc, table, threshold)
}

// VerifyDaCertificate checks a DA certificate against the DA committee.
func (v *Verifier) VerifyDaCertificate(cert *chain.DaCertificate) error {
	table, err := v.membership.DaStakeTable(cert.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.DaSuccessThreshold(cert.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, cert, table, threshold)
}

// VerifyTimeoutCertificate checks a timeout certificate.
func (v *Verifier) VerifyTimeoutCertificate(cert *chain.TimeoutCertificate) error {
	table, err := v.membership.StakeTable(cert.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.SuccessThreshold(cert.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, cert, table, threshold)
}

// VerifyViewSyncCertificate checks a view-sync finalize certificate.
func (v *Verifier) VerifyViewSyncCertificate(cert *chain.ViewSyncFinalizeCert) error {
	table, err := v.membership.StakeTable(cert.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.SuccessThreshold(cert.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, cert, table, threshold)
}

// VerifyUpgradeCertificate checks an upgrade certificate against the upgrade threshold.
func (v *Verifier) VerifyUpgradeCertificate(cert *chain.UpgradeCertificate) error {
	table, err := v.membership.StakeTable(cert.Epoch())
	if err != nil {
		return err
	}
	threshold, err := v.membership.UpgradeThreshold(cert.Epoch())
	if err != nil {
		return err
	}
	return verifyCertificate(v, cert, table, threshold)
}

// VerifyProposal checks that the proposal is signed by the given leader.
func VerifyProposal[T chain.Committable](v *Verifier, table chain.StakeTable, leader chain.NodeID, proposal *chain.Proposal[T]) error {
	commitment := proposal.Data.Commit()
	return v.VerifySignature(table, leader, commitment[:], proposal.Signature)
}

// VerifyStateVote checks a light-client state attestation with the signer's state key.
func (v *Verifier) VerifyStateVote(table chain.StakeTable, vote *chain.LightClientStateUpdateVote) error {
	entry, ok := table.Lookup(vote.Signer)
	if !ok || entry.Stake == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSigner, vote.Signer)
	}
	key, err := crypto.DecodeStatePublicKey(entry.StateKey)
	if err != nil {
		return fmt.Errorf("could not decode state key of %v: %w", vote.Signer, err)
	}
	commitment := vote.Data.Commit()
	return key.Verify(commitment[:], vote.Signature)
}
