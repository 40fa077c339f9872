package topologycalc

const (
	ComputeCluster  = "compute"
	StorageCluster  = "storage"
	CombinedCluster = "combined"
)

// LocalTopology is the declared inventory the roles are allocated over. Node
// lists are in provisioning order, which the allocation depends on.
type LocalTopology struct {
	ClusterType string
	AZCount     int
	QuorumCount int

	ComputeNodes []string
	StorageNodes []string
	DescNodes    []string

	// NSDServers may hold either full identifiers or short daemon names.
	NSDServers    []string
	ProtocolNodes []string
	AfmNodes      []string

	User    string
	KeyFile string
}
