package topologycalc

import "github.com/hpc-scale/prepare-scale/utils/sliceutils"

// OutputNode describes the roles and node class assigned to one instance.
type OutputNode struct {
	Address    string `json:"address"`
	DaemonName string `json:"daemon_nodename"`

	Quorum    bool `json:"quorum"`
	Manager   bool `json:"manager"`
	GUI       bool `json:"gui"`
	Collector bool `json:"collector"`
	NSD       bool `json:"nsd"`
	Admin     bool `json:"admin"`
	Protocol  bool `json:"protocol"`
	Gateway   bool `json:"gateway"`

	Class string `json:"nodeclass"`

	User    string `json:"user"`
	KeyFile string `json:"key_file"`
}

type OutputTopology struct {
	ClusterType string `json:"cluster_type"`
	QuorumCount int    `json:"quorum_count"`

	Nodes []*OutputNode `json:"nodes"`

	// GUIAddress is the address of the management node, empty when the
	// layout has none.
	GUIAddress string `json:"gui_address,omitempty"`
}

// Classes returns the distinct node classes in node order.
func (t *OutputTopology) Classes() []string {
	classes := make([]string, 0, len(t.Nodes))
	for _, node := range t.Nodes {
		classes = append(classes, node.Class)
	}
	return sliceutils.RemoveDuplicates(classes)
}

// QuorumNodes counts the nodes flagged as quorum nodes.
func (t *OutputTopology) QuorumNodes() int {
	count := 0
	for _, node := range t.Nodes {
		if node.Quorum {
			count++
		}
	}
	return count
}
