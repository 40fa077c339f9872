package inventory

import (
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hpc-scale/prepare-scale/common/validation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Record is the provisioned inventory handed over by the infrastructure layer.
// Keys marked required must be present, though their lists may be empty.
type Record struct {
	ComputeInstanceNames      []string `yaml:"compute_cluster_instance_names" validate:"required"`
	ComputeInstancePrivateIPs []string `yaml:"compute_cluster_instance_private_ips"`

	StorageInstanceNames      []string `yaml:"storage_cluster_instance_names" validate:"required"`
	StorageInstancePrivateIPs []string `yaml:"storage_cluster_instance_private_ips" validate:"required"`
	StorageDescPrivateIPs     []string `yaml:"storage_cluster_desc_instance_private_ips" validate:"required"`

	ProtocolInstanceNames []string `yaml:"protocol_cluster_instance_names" validate:"required"`
	AfmInstanceNames      []string `yaml:"afm_cluster_instance_names" validate:"required"`

	DataVolumeMapping     DeviceMapping `yaml:"storage_cluster_with_data_volume_mapping" validate:"required"`
	DescDataVolumeMapping DeviceMapping `yaml:"storage_cluster_desc_data_volume_mapping" validate:"required"`

	AvailabilityZones []string `yaml:"vpc_availability_zones" validate:"required,min=1"`
	Region            string   `yaml:"vpc_region"`

	ResourcePrefix    string `yaml:"resource_prefix"`
	ScaleVersion      string `yaml:"scale_version"`
	StorageSubnetCIDR string `yaml:"storage_subnet_cidr"`
	ComputeSubnetCIDR string `yaml:"compute_subnet_cidr"`
	ProtocolGatewayIP string `yaml:"protocol_gateway_ip"`
	RemoteClusterName string `yaml:"scale_remote_cluster_clustername"`

	FilesystemMountpoint        string   `yaml:"filesystem_mountpoint"`
	StorageFilesystemMountpoint string   `yaml:"storage_cluster_filesystem_mountpoint"`
	FilesystemBlockSize         string   `yaml:"filesystem_block_size"`
	Filesets                    Filesets `yaml:"filesets"`

	SMB          bool     `yaml:"smb"`
	NFS          bool     `yaml:"nfs"`
	Object       bool     `yaml:"object"`
	ExportIPPool []string `yaml:"export_ip_pool"`
	Filesystem   string   `yaml:"filesystem"`
	Mountpoint   string   `yaml:"mountpoint"`

	AfmCosBucketDetails interface{} `yaml:"afm_cos_bucket_details"`
	AfmConfigDetails    interface{} `yaml:"afm_config_details"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validation.New("yaml")
	})
	return validate
}

// Load reads and validates the inventory record at path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read inventory %s", path)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "inventory %s", path)
	}

	return rec, nil
}

// Decode parses a JSON (or YAML) inventory document and validates it.
func Decode(data []byte) (*Record, error) {
	rec := &Record{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, errors.Wrap(err, "failed to parse inventory")
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Validate checks that every required key was supplied.
func (r *Record) Validate() error {
	return validation.Struct(getValidator(), "inventory", r)
}

func (r *Record) AZCount() int {
	return len(r.AvailabilityZones)
}

// MultiAZ reports whether the cluster spans several availability zones.
func (r *Record) MultiAZ() bool {
	return r.AZCount() > 1
}

// FilesetNames returns the last path element of every fileset, in declaration order.
func (r *Record) FilesetNames() []string {
	names := make([]string, 0, len(r.Filesets))
	for _, fs := range r.Filesets {
		names = append(names, filesetName(fs.Path))
	}
	return names
}

func filesetName(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}
