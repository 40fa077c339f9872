// Package artifacts persists the side products of a planning run, such as the
// address of the cluster GUI, for the tooling that runs after the playbooks.
package artifacts

import (
	"context"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
)

type Sink interface {
	// Publish records the artifacts of plan.
	Publish(ctx context.Context, plan *clusterconfig.TopologyPlan) error
	// Cleanup drops whatever a previous run published for the cluster type.
	Cleanup(ctx context.Context, clusterType string) error
}

// GUIAddressKey is the key the GUI address is stored under.
func GUIAddressKey(clusterType string) string {
	return clusterType + "_cluster_gui_ip_address"
}

type multiSink []Sink

// Multi publishes to every sink in order, stopping at the first error.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Publish(ctx context.Context, plan *clusterconfig.TopologyPlan) error {
	for _, sink := range m {
		if err := sink.Publish(ctx, plan); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Cleanup(ctx context.Context, clusterType string) error {
	for _, sink := range m {
		if err := sink.Cleanup(ctx, clusterType); err != nil {
			return err
		}
	}
	return nil
}
