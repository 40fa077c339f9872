package ansible

import (
	"os"
	"path/filepath"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/hpc-scale/prepare-scale/common/hostrecord"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	InstallInfraDir = "ibm-spectrum-scale-install-infra"
	groupVarsDir    = "group_vars"
	hostsGroup      = "scale_nodes"

	encryptionGKLMPlaybook    = "encryption_gklm_playbook.yaml"
	encryptionClusterPlaybook = "encryption_cluster_playbook.yaml"
)

type WriterOptions struct {
	Logger *zap.Logger

	// InstallInfraPath is the parent of the install-infra checkout.
	InstallInfraPath string

	InstancePrivateKey string
	Bastion            *hostrecord.Bastion

	UsingPackerImage        bool
	UsingRestInitialization bool

	// EncryptionPlaybooks adds the key server playbooks.
	EncryptionPlaybooks bool
}

// Writer renders a topology plan into the inventory, group_vars and
// playbooks consumed by the install-infra roles.
type Writer struct {
	logger *zap.Logger
	opts   WriterOptions
}

func NewWriter(opts WriterOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Writer{
		logger: logger,
		opts:   opts,
	}
}

// Paths lists the files written for one cluster type.
type Paths struct {
	Dir       string
	Inventory string
	GroupVars string
	Playbook  string

	EncryptionPlaybooks []string
}

func (w *Writer) Paths(clusterType string) *Paths {
	dir := filepath.Join(w.opts.InstallInfraPath, InstallInfraDir)

	paths := &Paths{
		Dir:       dir,
		Inventory: filepath.Join(dir, clusterType+"_inventory.ini"),
		GroupVars: filepath.Join(dir, groupVarsDir, clusterType+"_cluster_config.yaml"),
		Playbook:  filepath.Join(dir, clusterType+"_cloud_playbook.yaml"),
	}
	if w.opts.EncryptionPlaybooks {
		paths.EncryptionPlaybooks = []string{
			filepath.Join(dir, encryptionGKLMPlaybook),
			filepath.Join(dir, encryptionClusterPlaybook),
		}
	}

	return paths
}

// Cleanup removes the outputs of a previous run for the cluster type.
func (w *Writer) Cleanup(clusterType string) error {
	paths := w.Paths(clusterType)
	for _, path := range []string{paths.Inventory, paths.GroupVars, paths.Playbook} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "failed to remove stale %s", path)
		}
		if err == nil {
			w.logger.Debug("removed stale output", zap.String("path", path))
		}
	}
	return nil
}

// Write renders every output of plan. Stale outputs are removed first.
func (w *Writer) Write(plan *clusterconfig.TopologyPlan) (*Paths, error) {
	if err := w.Cleanup(plan.ClusterType); err != nil {
		return nil, err
	}

	paths := w.Paths(plan.ClusterType)
	if err := os.MkdirAll(filepath.Dir(paths.GroupVars), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create group_vars directory")
	}

	if err := w.writePlaybook(paths.Playbook, plan.ClusterType); err != nil {
		return nil, err
	}
	if err := w.writeEncryptionPlaybooks(paths.EncryptionPlaybooks); err != nil {
		return nil, err
	}
	if err := w.writeInventory(paths.Inventory, plan); err != nil {
		return nil, err
	}
	if err := w.writeGroupVars(paths.GroupVars, plan); err != nil {
		return nil, err
	}

	w.logger.Info("wrote ansible configuration",
		zap.String("runId", plan.RunID),
		zap.String("clusterType", plan.ClusterType),
		zap.String("inventory", paths.Inventory),
		zap.String("groupVars", paths.GroupVars),
		zap.String("playbook", paths.Playbook))

	return paths, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
