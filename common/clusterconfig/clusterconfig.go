package clusterconfig

import (
	"github.com/google/uuid"
	"github.com/hpc-scale/prepare-scale/common/failuregroup"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/common/quorum"
	"github.com/hpc-scale/prepare-scale/common/topologycalc"
	"golang.org/x/exp/slices"
)

// TopologyPlan is everything a single planning run produces.
type TopologyPlan struct {
	RunID       string `json:"run_id"`
	ClusterType string `json:"cluster_type"`
	QuorumCount int    `json:"quorum_count"`

	Topology *topologycalc.OutputTopology `json:"topology"`
	Tunings  []*nodeclass.Tuning          `json:"tunings"`
	Disks    []*failuregroup.Disk         `json:"disks"`

	ScaleConfig *ScaleConfig `json:"scale_config"`
	// Storage is only set for storage and combined clusters.
	Storage     *StorageConfig `json:"storage,omitempty"`
	ClusterVars *ClusterVars   `json:"cluster_vars"`

	GUIAddress string `json:"gui_address,omitempty"`
}

func (p *TopologyPlan) HasStorage() bool {
	return p.Storage != nil
}

// Assemble plans the cluster described by rec. Nothing is returned alongside
// an error.
func Assemble(rec *inventory.Record, s *Settings) (*TopologyPlan, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sizings, err := parseSizings(s.Sizing)
	if err != nil {
		return nil, err
	}

	azCount := rec.AZCount()
	compute := len(rec.ComputeInstanceNames)
	storage := len(rec.StorageInstanceNames)
	desc := len(rec.StorageDescPrivateIPs)

	clusterType, err := topologycalc.DetectClusterType(azCount, compute, storage, desc)
	if err != nil {
		return nil, err
	}

	quorumCount := quorum.Count(quorum.TotalNodes(azCount, compute, storage, desc))

	topo, err := topologycalc.CalcTopology(&topologycalc.LocalTopology{
		ClusterType:   clusterType,
		AZCount:       azCount,
		QuorumCount:   quorumCount,
		ComputeNodes:  rec.ComputeInstanceNames,
		StorageNodes:  rec.StorageInstanceNames,
		DescNodes:     rec.StorageDescPrivateIPs,
		NSDServers:    rec.DataVolumeMapping.Servers(),
		ProtocolNodes: rec.ProtocolInstanceNames,
		AfmNodes:      rec.AfmInstanceNames,
		User:          s.user(),
		KeyFile:       s.InstancePrivateKey,
	})
	if err != nil {
		return nil, err
	}

	tunings := presentTunings(topo.Classes(), sizings)

	plan := &TopologyPlan{
		RunID:       uuid.NewString(),
		ClusterType: clusterType,
		QuorumCount: quorumCount,
		Topology:    topo,
		Tunings:     tunings,
		Disks:       []*failuregroup.Disk{},
		ScaleConfig: newScaleConfig(tunings),
		ClusterVars: newClusterVars(rec, s, clusterType),
		GUIAddress:  topo.GUIAddress,
	}

	if clusterType != topologycalc.ComputeCluster {
		disks := failuregroup.Assign(failuregroup.AssignOptions{
			AZCount:        azCount,
			AttachmentType: s.DiskType,
			DataDisks:      serverDevices(rec.DataVolumeMapping),
			DescDisks:      serverDevices(rec.DescDataVolumeMapping),
		})
		if disks != nil {
			plan.Disks = disks
		}

		fs := newFilesystem(rec, s, plan.Disks)
		plan.Storage = &StorageConfig{
			Protocols: newProtocols(rec, s, fs.Filesets),
			Storage:   []*Filesystem{fs},
		}
	}

	return plan, nil
}

// parseSizings validates every configured sizing, including those of classes
// the plan may end up not using.
func parseSizings(raw map[string]RawSizing) (map[string]nodeclass.Sizing, error) {
	out := make(map[string]nodeclass.Sizing, len(raw))
	for _, class := range nodeclass.All {
		r, ok := raw[class]
		if !ok {
			continue
		}

		sizing, err := nodeclass.ParseSizing(SizingFlagPrefix(class), r.Memory, r.VCPUs, r.Bandwidth)
		if err != nil {
			return nil, err
		}
		out[class] = sizing
	}
	return out, nil
}

// presentTunings derives the tuning of each class in classes that has a
// sizing, keeping the order of classes.
func presentTunings(classes []string, sizings map[string]nodeclass.Sizing) []*nodeclass.Tuning {
	tunings := make([]*nodeclass.Tuning, 0, len(classes))
	for _, class := range classes {
		if !slices.Contains(nodeclass.All, class) {
			continue
		}
		sizing, ok := sizings[class]
		if !ok {
			continue
		}
		tunings = append(tunings, nodeclass.Derive(class, sizing))
	}
	return tunings
}

func serverDevices(m inventory.DeviceMapping) []failuregroup.ServerDevices {
	out := make([]failuregroup.ServerDevices, 0, len(m))
	for _, entry := range m {
		out = append(out, failuregroup.ServerDevices{
			Server:  entry.Server,
			Devices: entry.Devices,
		})
	}
	return out
}
