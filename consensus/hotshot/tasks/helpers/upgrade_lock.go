package helpers

import (
	"sync"

	"github.com/hotshot-go/hotshot/model/chain"
)

// UpgradeLock tracks the protocol version in force at each view. The version changes once an
// upgrade certificate is decided and the certificate's first new-version view is reached.
//
// Concurrency safe.
type UpgradeLock struct {
	mu       sync.RWMutex
	versions chain.Versions
	decided  *chain.UpgradeCertificate
}

func NewUpgradeLock(versions chain.Versions) *UpgradeLock {
	return &UpgradeLock{versions: versions}
}

// Versions returns the configured versions.
func (l *UpgradeLock) Versions() chain.Versions {
	return l.versions
}

// Version returns the protocol version of the view.
func (l *UpgradeLock) Version(view uint64) chain.Version {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.decided != nil && view >= l.decided.Data.NewVersionFirstView {
		return l.decided.Data.NewVersion
	}
	return l.versions.Base
}

// EpochsEnabled returns true if the view runs a protocol version with epochs.
func (l *UpgradeLock) EpochsEnabled(view uint64) bool {
	return l.Version(view).AtLeast(l.versions.Epochs)
}

// Decided returns the decided upgrade certificate, if any.
func (l *UpgradeLock) Decided() *chain.UpgradeCertificate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.decided
}

// SetDecided records the decided upgrade certificate. Only the first call has an effect.
func (l *UpgradeLock) SetDecided(cert *chain.UpgradeCertificate) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.decided != nil {
		return false
	}
	l.decided = cert
	return true
}

// Upgraded returns true if an upgrade to the target version was decided.
func (l *UpgradeLock) Upgraded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.decided != nil && l.decided.Data.NewVersion.AtLeast(l.versions.Upgrade)
}
