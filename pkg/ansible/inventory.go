package ansible

import (
	"bytes"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/hpc-scale/prepare-scale/common/hostrecord"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

const varsSection = "all:vars"

// renderInventory writes the host lines followed by the cluster variables.
// Host lines carry spaces and quotes an INI encoder would escape, so they
// are written as is.
func (w *Writer) renderInventory(plan *clusterconfig.TopologyPlan) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[" + hostsGroup + "]\n")

	opts := hostrecord.Options{Bastion: w.opts.Bastion}
	for _, node := range plan.Topology.Nodes {
		buf.WriteString(hostrecord.Encode(node, opts))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	cfg := ini.Empty(ini.LoadOptions{
		IgnoreInlineComment:     true,
		PreserveSurroundedQuote: true,
	})
	section, err := cfg.NewSection(varsSection)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create inventory vars section")
	}
	for _, entry := range plan.ClusterVars.Entries() {
		if _, err := section.NewKey(entry.Key, entry.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to add inventory var %s", entry.Key)
		}
	}

	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to encode inventory vars")
	}

	return buf.Bytes(), nil
}

func (w *Writer) writeInventory(path string, plan *clusterconfig.TopologyPlan) error {
	data, err := w.renderInventory(plan)
	if err != nil {
		return err
	}

	w.logger.Debug("inventory content", zap.String("path", path), zap.Int("hosts", len(plan.Topology.Nodes)))
	return writeFile(path, data)
}
