package quorum

// Count returns the number of quorum nodes a cluster of total nodes should have.
// Clusters smaller than four nodes make every node a quorum node.
func Count(total int) int {
	switch {
	case total < 4:
		return total
	case total < 10:
		return 3
	case total < 19:
		return 5
	default:
		return 7
	}
}

// TotalNodes counts the nodes participating in quorum selection. Descriptor
// nodes only count when the cluster spans more than one availability zone.
func TotalNodes(azCount, compute, storage, desc int) int {
	if azCount > 1 {
		return compute + desc + storage
	}
	return compute + storage
}
