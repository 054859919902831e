package metrics

// Prometheus metric namespaces
const (
	namespaceHotShot = "hotshot"
)

// Subsystems of the hotshot namespace
const (
	subsystemConsensus    = "consensus"
	subsystemTasks        = "tasks"
	subsystemCertificates = "certificates"
	subsystemBuilder      = "builder"
	subsystemMempool      = "mempool"
	subsystemMembership   = "membership"
)
