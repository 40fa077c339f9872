package topologycalc

import (
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/hpc-scale/prepare-scale/utils/netutils"
	"github.com/hpc-scale/prepare-scale/utils/sliceutils"
)

// managerSlots caps the number of storage nodes made managers in a combined cluster.
const managerSlots = 2

// DetectClusterType picks the cluster shape from the declared node counts.
func DetectClusterType(azCount, compute, storage, desc int) (string, error) {
	switch {
	case compute == 0 && storage == 0:
		return "", planerrors.NewTopologyError("", "no compute or storage instances declared")
	case storage == 0:
		return ComputeCluster, nil
	case compute == 0 && azCount == 1:
		return StorageCluster, nil
	case compute == 0 && azCount > 1 && desc > 0:
		return StorageCluster, nil
	default:
		return CombinedCluster, nil
	}
}

// CalcTopology assigns roles and node classes to every declared node.
func CalcTopology(lt *LocalTopology) (*OutputTopology, error) {
	if lt.QuorumCount < 0 {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "negative quorum count %d", lt.QuorumCount)
	}

	var nodes []*OutputNode
	var err error
	switch lt.ClusterType {
	case ComputeCluster:
		nodes, err = calcCompute(lt)
	case StorageCluster:
		nodes, err = calcStorage(lt)
	case CombinedCluster:
		nodes, err = calcCombined(lt)
	default:
		return nil, planerrors.NewTopologyError(lt.ClusterType, "unknown cluster type")
	}
	if err != nil {
		return nil, err
	}

	out := &OutputTopology{
		ClusterType: lt.ClusterType,
		QuorumCount: lt.QuorumCount,
		Nodes:       nodes,
	}

	for _, node := range nodes {
		if node.GUI {
			out.GUIAddress = node.Address
			break
		}
	}

	return out, nil
}

func newNodes(lt *LocalTopology, addrs []string) []*OutputNode {
	nodes := make([]*OutputNode, 0, len(addrs))
	for _, addr := range addrs {
		nodes = append(nodes, &OutputNode{
			Address:    addr,
			DaemonName: netutils.ShortName(addr),
			User:       lt.User,
			KeyFile:    lt.KeyFile,
		})
	}
	return nodes
}

func calcCompute(lt *LocalTopology) ([]*OutputNode, error) {
	n := len(lt.ComputeNodes)
	q := lt.QuorumCount
	if n < 1 {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "at least one compute node is required")
	}
	if q > n {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "quorum count %d exceeds %d compute nodes", q, n)
	}

	nodes := newNodes(lt, lt.ComputeNodes)
	allocate(nodes, []slot{
		{
			match: before(q),
			assign: func(node *OutputNode) {
				node.Quorum = true
				node.Manager = true
				node.Admin = true
				node.Class = nodeclass.Compute
			},
		},
		{
			match: always,
			assign: func(node *OutputNode) {
				node.Manager = true
				node.Admin = true
				node.Class = nodeclass.Compute
			},
		},
	}, []slot{
		{
			// the last node hosts the GUI and keeps its quorum slot, if any
			match: at(n - 1),
			assign: func(node *OutputNode) {
				node.Manager = false
				node.GUI = true
				node.Collector = true
				node.Admin = true
				node.Class = nodeclass.Management
			},
		},
	})

	return nodes, nil
}

type storageFlags struct {
	nsd      map[string]struct{}
	protocol map[string]struct{}
	afm      map[string]struct{}
}

func newStorageFlags(lt *LocalTopology) *storageFlags {
	return &storageFlags{
		nsd:      sliceutils.ToSet(lt.NSDServers),
		protocol: sliceutils.ToSet(lt.ProtocolNodes),
		afm:      sliceutils.ToSet(lt.AfmNodes),
	}
}

func (f *storageFlags) isNSD(node *OutputNode) bool {
	if _, ok := f.nsd[node.Address]; ok {
		return true
	}
	_, ok := f.nsd[node.DaemonName]
	return ok
}

func (f *storageFlags) isProtocol(node *OutputNode) bool {
	_, ok := f.protocol[node.Address]
	return ok
}

func (f *storageFlags) isAfm(node *OutputNode) bool {
	_, ok := f.afm[node.Address]
	return ok
}

// storageClass picks the node class of a storage cluster member from its duties.
func storageClass(nsd, protocol, afm bool) string {
	switch {
	case nsd && protocol:
		return nodeclass.StorageProtocol
	case nsd:
		return nodeclass.Storage
	case protocol:
		return nodeclass.Protocol
	case afm:
		return nodeclass.AfmGateway
	default:
		return nodeclass.Management
	}
}

func (f *storageFlags) apply(node *OutputNode) {
	node.NSD = f.isNSD(node)
	node.Protocol = f.isProtocol(node)
	node.Gateway = f.isAfm(node)
	node.Class = storageClass(node.NSD, node.Protocol, node.Gateway)
}

func calcStorage(lt *LocalTopology) ([]*OutputNode, error) {
	n := len(lt.StorageNodes)
	q := lt.QuorumCount
	if n < 2 {
		return nil, planerrors.NewTopologyError(lt.ClusterType,
			"at least two storage nodes are required for the management and tie-breaker nodes, got %d", n)
	}
	if q > n {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "quorum count %d exceeds %d storage nodes", q, n)
	}
	if q < 1 {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "quorum count must be at least 1")
	}

	flags := newStorageFlags(lt)
	nodes := newNodes(lt, lt.StorageNodes)
	allocate(nodes, []slot{
		{
			match: before(q - 1),
			assign: func(node *OutputNode) {
				flags.apply(node)
				node.Quorum = true
				node.Manager = true
				node.Admin = true
			},
		},
		{
			// tie-breaker holding the descriptor-only disk
			match: at(n - 1),
			assign: func(node *OutputNode) {
				node.Quorum = true
				node.NSD = true
				node.Class = nodeclass.StorageDesc
			},
		},
		{
			match: always,
			assign: func(node *OutputNode) {
				flags.apply(node)
				node.Manager = node.NSD
				node.Admin = node.NSD
			},
		},
	}, []slot{
		{
			// a quorum node in this slot (only in clusters of three or fewer
			// nodes) stays a quorum manager
			match: at(n - 2),
			assign: func(node *OutputNode) {
				node.Manager = node.Quorum
				node.GUI = true
				node.Collector = true
				node.Admin = true
				node.NSD = false
				node.Protocol = false
				node.Gateway = false
				node.Class = nodeclass.Management
			},
		},
	})

	return nodes, nil
}

func calcCombined(lt *LocalTopology) ([]*OutputNode, error) {
	q := lt.QuorumCount
	d := len(lt.DescNodes)
	s := len(lt.StorageNodes)
	c := len(lt.ComputeNodes)

	if s < 1 {
		return nil, planerrors.NewTopologyError(lt.ClusterType, "at least one storage node is required")
	}
	if d > q {
		return nil, planerrors.NewTopologyError(lt.ClusterType,
			"%d descriptor nodes exceed the quorum count %d", d, q)
	}

	storageQuorum := min(s, q-d)
	if storageQuorum < 1 {
		return nil, planerrors.NewTopologyError(lt.ClusterType,
			"no quorum slot left for the storage management node (quorum %d, descriptor nodes %d)", q, d)
	}

	computeQuorum := q - d - storageQuorum
	if computeQuorum > c {
		return nil, planerrors.NewTopologyError(lt.ClusterType,
			"%d quorum slots left for %d compute nodes", computeQuorum, c)
	}

	descNodes := newNodes(lt, lt.DescNodes)
	allocate(descNodes, []slot{
		{
			match: always,
			assign: func(node *OutputNode) {
				node.Quorum = true
				node.NSD = true
				node.Class = nodeclass.ComputeDesc
			},
		},
	}, nil)

	flags := newStorageFlags(lt)
	storageNodes := newNodes(lt, lt.StorageNodes)
	allocate(storageNodes, []slot{
		{
			match: before(storageQuorum),
			assign: func(node *OutputNode) {
				node.Quorum = true
				node.Admin = true
			},
		},
	}, []slot{
		{
			match: always,
			assign: func(node *OutputNode) {
				node.NSD = true
				node.Protocol = flags.isProtocol(node)
				node.Gateway = flags.isAfm(node)
				node.Class = storageClass(true, node.Protocol, node.Gateway)
			},
		},
		{
			match: before(min(storageQuorum, managerSlots)),
			assign: func(node *OutputNode) {
				node.Manager = true
				node.Collector = true
			},
		},
		{
			match: at(0),
			assign: func(node *OutputNode) {
				node.GUI = true
			},
		},
	})

	computeNodes := newNodes(lt, lt.ComputeNodes)
	allocate(computeNodes, []slot{
		{
			match: before(computeQuorum),
			assign: func(node *OutputNode) {
				node.Quorum = true
				node.Admin = true
				node.Class = nodeclass.Compute
			},
		},
		{
			match: always,
			assign: func(node *OutputNode) {
				node.Class = nodeclass.Compute
			},
		},
	}, nil)

	nodes := make([]*OutputNode, 0, d+s+c)
	nodes = append(nodes, descNodes...)
	nodes = append(nodes, storageNodes...)
	nodes = append(nodes, computeNodes...)
	return nodes, nil
}
