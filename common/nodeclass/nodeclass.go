package nodeclass

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hpc-scale/prepare-scale/common/planerrors"
)

const (
	Compute         = "computenodegrp"
	Management      = "managementnodegrp"
	StorageDesc     = "storagedescnodegrp"
	ComputeDesc     = "computedescnodegrp"
	Storage         = "storagenodegrp"
	Protocol        = "protocolnodegrp"
	StorageProtocol = "storageprotocolnodegrp"
	AfmGateway      = "afmgatewaygrp"
)

// All lists every node class the planner can assign, in the order their
// tuning is emitted when no node ordering is available.
var All = []string{
	StorageDesc,
	ComputeDesc,
	Management,
	Compute,
	Storage,
	Protocol,
	StorageProtocol,
	AfmGateway,
}

const afmHardMemThreshold = "40G"

// Sizing is the validated resource sizing of the instances in one node class.
type Sizing struct {
	MemoryGB      float64
	VCPUs         int
	BandwidthMbps int
}

// Tuning holds the derived GPFS configuration parameters for a node class.
type Tuning struct {
	Class string `yaml:"-" json:"nodeclass_name"`

	Pagepool            string `yaml:"pagepool" json:"pagepool"`
	MaxStatCache        string `yaml:"maxStatCache" json:"maxStatCache"`
	MaxFilesToCache     string `yaml:"maxFilesToCache" json:"maxFilesToCache"`
	MaxReceiverThreads  int    `yaml:"maxReceiverThreads" json:"maxReceiverThreads"`
	MaxMBpS             int    `yaml:"maxMBpS" json:"maxMBpS"`
	AfmHardMemThreshold string `yaml:"afmHardMemThreshold,omitempty" json:"afmHardMemThreshold,omitempty"`
}

// ParseSizing converts raw sizing strings into a Sizing. The name is only used
// to identify the offending value in errors.
func ParseSizing(name, memory, vcpus, bandwidth string) (Sizing, error) {
	mem, err := strconv.ParseFloat(strings.TrimSpace(memory), 64)
	if err != nil || math.IsNaN(mem) || math.IsInf(mem, 0) || mem < 0 {
		return Sizing{}, &planerrors.NumericInputError{Name: name + "-memory", Value: memory, Cause: err}
	}

	cpus, err := strconv.Atoi(strings.TrimSpace(vcpus))
	if err != nil || cpus < 0 {
		return Sizing{}, &planerrors.NumericInputError{Name: name + "-vcpus-count", Value: vcpus, Cause: err}
	}

	bw, err := strconv.Atoi(strings.TrimSpace(bandwidth))
	if err != nil || bw < 0 {
		return Sizing{}, &planerrors.NumericInputError{Name: name + "-bandwidth", Value: bandwidth, Cause: err}
	}

	return Sizing{
		MemoryGB:      mem,
		VCPUs:         cpus,
		BandwidthMbps: bw,
	}, nil
}

// Derive computes the tuning parameters of class for instances of the given sizing.
func Derive(class string, s Sizing) *Tuning {
	t := &Tuning{
		Class:              class,
		Pagepool:           pagepool(class, s.MemoryGB),
		MaxStatCache:       maxStatCache(class, s.MemoryGB),
		MaxFilesToCache:    maxFilesToCache(class, s.MemoryGB),
		MaxReceiverThreads: s.VCPUs,
		MaxMBpS:            int(math.Floor(float64(s.BandwidthMbps) * 0.25)),
	}

	if class == AfmGateway {
		t.AfmHardMemThreshold = afmHardMemThreshold
	}

	return t
}

func pagepool(class string, memory float64) string {
	var gb int
	switch class {
	case Compute:
		gb = min(int(math.Ceil(memory*0.12)), 16)
	case StorageProtocol:
		gb = min(int(math.Floor(memory*0.4)), 256)
	default:
		gb = min(int(math.Floor(memory*0.25)), 32)
	}
	return fmt.Sprintf("%dG", gb)
}

func hasFixedCaches(class string) bool {
	switch class {
	case Management, StorageDesc, ComputeDesc, Storage:
		return true
	}
	return false
}

func maxStatCache(class string, memory float64) string {
	if class == Compute {
		return "256K"
	}
	if hasFixedCaches(class) {
		return "128K"
	}
	return fmt.Sprintf("%dK", min(int(memory*8), 512))
}

func maxFilesToCache(class string, memory float64) string {
	if class == Compute {
		return "256K"
	}
	if hasFixedCaches(class) {
		return "128K"
	}

	files := int(memory * 8)
	if files < 1024 {
		return fmt.Sprintf("%dK", files)
	}
	return fmt.Sprintf("%dM", min(files/1024, 3))
}
