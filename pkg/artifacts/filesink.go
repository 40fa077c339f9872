package artifacts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type FileSinkOptions struct {
	Logger *zap.Logger
	// Dir is where the GUI details file is written, normally the directory
	// holding the inventory record.
	Dir string
}

type FileSink struct {
	logger *zap.Logger
	dir    string
}

var _ Sink = (*FileSink)(nil)

func NewFileSink(opts FileSinkOptions) *FileSink {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSink{
		logger: logger,
		dir:    opts.Dir,
	}
}

func (s *FileSink) GUIDetailsPath(clusterType string) string {
	return filepath.Join(s.dir, clusterType+"_cluster_gui_details.json")
}

func (s *FileSink) Publish(ctx context.Context, plan *clusterconfig.TopologyPlan) error {
	if plan.GUIAddress == "" {
		s.logger.Debug("plan has no management node, skipping gui details")
		return nil
	}

	data, err := json.MarshalIndent(map[string]string{
		GUIAddressKey(plan.ClusterType): plan.GUIAddress,
	}, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode gui details")
	}

	path := s.GUIDetailsPath(plan.ClusterType)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write gui details %s", path)
	}

	s.logger.Info("wrote gui details",
		zap.String("path", path),
		zap.String("address", plan.GUIAddress))

	return nil
}

func (s *FileSink) Cleanup(ctx context.Context, clusterType string) error {
	path := s.GUIDetailsPath(clusterType)
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove stale gui details %s", path)
	}
	return nil
}
