package failuregroup

import (
	"github.com/hpc-scale/prepare-scale/utils/netutils"
)

const (
	LocallyAttached = "locally-attached"

	UsageDataAndMetadata = "dataAndMetadata"
	UsageDescOnly        = "descOnly"

	SystemPool = "system"

	descOnlyGroup = 3
)

// ServerDevices is one entry of an ordered server to devices mapping.
type ServerDevices struct {
	Server  string
	Devices []string
}

// Disk is the placement of a single NSD device.
type Disk struct {
	Device       string `yaml:"device" json:"device"`
	FailureGroup int    `yaml:"failureGroup" json:"failureGroup"`
	Servers      string `yaml:"servers" json:"servers"`
	Usage        string `yaml:"usage" json:"usage"`
	Pool         string `yaml:"pool" json:"pool"`
}

type AssignOptions struct {
	AZCount        int
	AttachmentType string

	DataDisks []ServerDevices
	// DescDisks is only consulted for network attached layouts, and only its
	// first device is used.
	DescDisks []ServerDevices
}

// Assign places every data disk into a failure group.
//
// Locally attached disks get one failure group per server. Network attached
// disks are split between groups 1 and 2, by position within a single zone and
// by subnet across zones, with an optional descriptor-only disk in group 3.
func Assign(opts AssignOptions) []*Disk {
	if opts.AttachmentType == LocallyAttached {
		return assignLocal(opts.DataDisks)
	}

	var disks []*Disk

	groups := splitServers(opts.AZCount, opts.DataDisks)
	for i, entry := range opts.DataDisks {
		for _, device := range entry.Devices {
			disks = append(disks, &Disk{
				Device:       device,
				FailureGroup: groups[i],
				Servers:      entry.Server,
				Usage:        UsageDataAndMetadata,
				Pool:         SystemPool,
			})
		}
	}

	if desc := descDisk(opts.DescDisks); desc != nil {
		disks = append(disks, desc)
	}

	return disks
}

func assignLocal(mapping []ServerDevices) []*Disk {
	var disks []*Disk
	for i, entry := range mapping {
		for _, device := range entry.Devices {
			disks = append(disks, &Disk{
				Device:       device,
				FailureGroup: i + 1,
				Servers:      entry.Server,
				Usage:        UsageDataAndMetadata,
				Pool:         SystemPool,
			})
		}
	}
	return disks
}

// splitServers returns the failure group (1 or 2) of each mapping entry.
func splitServers(azCount int, mapping []ServerDevices) []int {
	groups := make([]int, len(mapping))
	if len(mapping) == 0 {
		return groups
	}

	if azCount <= 1 {
		for i := range mapping {
			groups[i] = 1 + i%2
		}
		return groups
	}

	// Servers sharing the first server's subnet stay in group 1, everything
	// else is taken to live in the other zone.
	first := mapping[0].Server
	for i, entry := range mapping {
		if i == 0 || netutils.SameThirdOctet(first, entry.Server) {
			groups[i] = 1
		} else {
			groups[i] = 2
		}
	}
	return groups
}

func descDisk(mapping []ServerDevices) *Disk {
	if len(mapping) == 0 || len(mapping[0].Devices) == 0 {
		return nil
	}

	return &Disk{
		Device:       mapping[0].Devices[0],
		FailureGroup: descOnlyGroup,
		Servers:      mapping[0].Server,
		Usage:        UsageDescOnly,
		Pool:         SystemPool,
	}
}
