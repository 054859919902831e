package hotshot

import "github.com/hotshot-go/hotshot/model/chain"

// VoteCollectorStatus reports whether a collector has already emitted its certificate.
type VoteCollectorStatus int

const (
	// VoteCollectorStatusCollecting means votes are still being accumulated.
	VoteCollectorStatusCollecting VoteCollectorStatus = iota
	// VoteCollectorStatusCertified means the certificate was emitted.
	VoteCollectorStatusCertified
)

var collectorStatusNames = [...]string{"VoteCollectorStatusCollecting", "VoteCollectorStatusCertified"}

func (ps VoteCollectorStatus) String() string {
	if ps < 0 || int(ps) >= len(collectorStatusNames) {
		return "UNKNOWN"
	}
	return collectorStatusNames[ps]
}

// VoteCollector accumulates votes of a single view for a single kind of vote data.
type VoteCollector[D chain.VoteData] interface {
	// AddVote accumulates the vote. The certificate is returned exactly once: by the call that
	// pushes the accumulated stake for its data over the threshold.
	AddVote(vote *chain.SimpleVote[D]) (*chain.SimpleCertificate[D], error)

	// View returns the view the collector is responsible for.
	View() uint64

	// Status returns the collector's status.
	Status() VoteCollectorStatus
}

// Workers submits functions for asynchronous execution.
type Workers interface {
	Submit(task func())
}

// Workerpool is a Workers that can be shut down.
type Workerpool interface {
	Workers

	StopWait()
}
