package ansible

import (
	"bytes"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func encodeYAML(buf *bytes.Buffer, v interface{}) error {
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// renderGroupVars emits the node class tuning and, for clusters owning
// disks, the storage and protocol sections. Both are top level mappings of
// the same document.
func renderGroupVars(plan *clusterconfig.TopologyPlan) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeYAML(&buf, plan.ScaleConfig); err != nil {
		return nil, errors.Wrap(err, "failed to encode scale config")
	}

	if plan.HasStorage() {
		if err := encodeYAML(&buf, plan.Storage); err != nil {
			return nil, errors.Wrap(err, "failed to encode storage config")
		}
	}

	return buf.Bytes(), nil
}

func (w *Writer) writeGroupVars(path string, plan *clusterconfig.TopologyPlan) error {
	data, err := renderGroupVars(plan)
	if err != nil {
		return err
	}

	w.logger.Debug("group_vars content", zap.String("path", path), zap.ByteString("content", data))
	return writeFile(path, data)
}
