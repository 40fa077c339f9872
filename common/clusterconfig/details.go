package clusterconfig

import (
	"bytes"
	"encoding/json"
	"path"

	"github.com/hpc-scale/prepare-scale/common/failuregroup"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/utils/netutils"
	"github.com/hpc-scale/prepare-scale/utils/sliceutils"
	"gopkg.in/yaml.v3"
)

const ephemeralPortRange = "60000-61000"

type NodeClassConfig struct {
	NodeClass string              `yaml:"nodeclass" json:"nodeclass"`
	Params    []*nodeclass.Tuning `yaml:"params" json:"params"`
}

type ClusterConfig struct {
	EphemeralPortRange string `yaml:"ephemeral_port_range" json:"ephemeral_port_range"`
}

// ScaleConfig is the node class section of the cluster group_vars.
type ScaleConfig struct {
	NodeClasses   []NodeClassConfig `yaml:"scale_config" json:"scale_config"`
	ClusterConfig ClusterConfig     `yaml:"scale_cluster_config" json:"scale_cluster_config"`
}

func newScaleConfig(tunings []*nodeclass.Tuning) *ScaleConfig {
	cfg := &ScaleConfig{
		NodeClasses: make([]NodeClassConfig, 0, len(tunings)),
		ClusterConfig: ClusterConfig{
			EphemeralPortRange: ephemeralPortRange,
		},
	}
	for _, t := range tunings {
		cfg.NodeClasses = append(cfg.NodeClasses, NodeClassConfig{
			NodeClass: t.Class,
			Params:    []*nodeclass.Tuning{t},
		})
	}
	return cfg
}

// FilesetSize is one entry of an ordered fileset name to size mapping.
type FilesetSize struct {
	Name string
	Size interface{}
}

type FilesetSizes []FilesetSize

func (f FilesetSizes) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, fs := range f {
		var key, value yaml.Node
		if err := key.Encode(fs.Name); err != nil {
			return nil, err
		}
		if err := value.Encode(fs.Size); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node, nil
}

func (f FilesetSizes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fs := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fs.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fs.Size)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Names returns the fileset names in order.
func (f FilesetSizes) Names() []string {
	names := make([]string, 0, len(f))
	for _, fs := range f {
		names = append(names, fs.Name)
	}
	return names
}

// filesetSizes keys the filesets by name. When two paths share a name the
// later size wins but the earlier position is kept.
func filesetSizes(rec *inventory.Record) FilesetSizes {
	out := make(FilesetSizes, 0, len(rec.Filesets))
	index := make(map[string]int, len(rec.Filesets))
	for i, name := range rec.FilesetNames() {
		size := rec.Filesets[i].Size
		if pos, ok := index[name]; ok {
			out[pos].Size = size
			continue
		}
		index[name] = len(out)
		out = append(out, FilesetSize{Name: name, Size: size})
	}
	return out
}

type Filesystem struct {
	Filesystem              string               `yaml:"filesystem" json:"filesystem"`
	BlockSize               string               `yaml:"blockSize" json:"blockSize"`
	DefaultDataReplicas     int                  `yaml:"defaultDataReplicas" json:"defaultDataReplicas"`
	DefaultMetadataReplicas int                  `yaml:"defaultMetadataReplicas" json:"defaultMetadataReplicas"`
	MaxDataReplicas         int                  `yaml:"maxDataReplicas" json:"maxDataReplicas"`
	MaxMetadataReplicas     int                  `yaml:"maxMetadataReplicas" json:"maxMetadataReplicas"`
	AutomaticMountOption    string               `yaml:"automaticMountOption" json:"automaticMountOption"`
	DefaultMountPoint       string               `yaml:"defaultMountPoint" json:"defaultMountPoint"`
	Disks                   []*failuregroup.Disk `yaml:"disks" json:"disks"`
	Filesets                FilesetSizes         `yaml:"filesets" json:"filesets"`
}

func newFilesystem(rec *inventory.Record, s *Settings, disks []*failuregroup.Disk) *Filesystem {
	dataReplicas := s.DefaultDataReplicas
	metadataReplicas := s.DefaultMetadataReplicas
	if dataReplicas == 0 {
		metadataReplicas = 2
		if rec.MultiAZ() {
			dataReplicas = 2
		} else {
			dataReplicas = 1
		}
	}

	if disks == nil {
		disks = []*failuregroup.Disk{}
	}

	return &Filesystem{
		Filesystem:              mountName(rec.StorageFilesystemMountpoint),
		BlockSize:               rec.FilesystemBlockSize,
		DefaultDataReplicas:     dataReplicas,
		DefaultMetadataReplicas: metadataReplicas,
		MaxDataReplicas:         s.MaxDataReplicas,
		MaxMetadataReplicas:     s.MaxMetadataReplicas,
		AutomaticMountOption:    "true",
		DefaultMountPoint:       rec.StorageFilesystemMountpoint,
		Disks:                   disks,
		Filesets:                filesetSizes(rec),
	}
}

func mountName(mount string) string {
	if mount == "" {
		return ""
	}
	name := path.Base(mount)
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// Protocols is the CES section of the cluster group_vars.
type Protocols struct {
	NFS             bool                `yaml:"nfs" json:"nfs"`
	Object          bool                `yaml:"object" json:"object"`
	SMB             bool                `yaml:"smb" json:"smb"`
	ExportNodeIPMap []map[string]string `yaml:"export_node_ip_map" json:"export_node_ip_map"`
	Filesystem      string              `yaml:"filesystem" json:"filesystem"`
	Mountpoint      string              `yaml:"mountpoint" json:"mountpoint"`
	Exports         []string            `yaml:"exports" json:"exports"`
}

func newProtocols(rec *inventory.Record, s *Settings, filesets FilesetSizes) *Protocols {
	p := &Protocols{
		NFS:             rec.NFS,
		Object:          rec.Object,
		SMB:             rec.SMB,
		ExportNodeIPMap: []map[string]string{},
		Filesystem:      rec.Filesystem,
		Mountpoint:      rec.Mountpoint,
		Exports:         []string{},
	}
	if !s.EnableCES {
		return p
	}

	p.Exports = filesets.Names()
	for _, pair := range sliceutils.Zip(rec.ProtocolInstanceNames, rec.ExportIPPool) {
		p.ExportNodeIPMap = append(p.ExportNodeIPMap, map[string]string{
			netutils.ShortName(pair.First): pair.Second,
		})
	}
	return p
}

// StorageConfig is the storage section appended to the group_vars of
// storage and combined clusters.
type StorageConfig struct {
	Protocols *Protocols    `yaml:"scale_protocols" json:"scale_protocols"`
	Storage   []*Filesystem `yaml:"scale_storage" json:"scale_storage"`
}
