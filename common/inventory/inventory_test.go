package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsMappingOrder(t *testing.T) {
	rec, err := Load("testdata/storage_1az.json")
	require.NoError(t, err)

	require.Equal(t, 1, rec.AZCount())
	require.False(t, rec.MultiAZ())
	require.Len(t, rec.StorageInstanceNames, 4)
	require.NotNil(t, rec.ComputeInstanceNames)
	require.Empty(t, rec.ComputeInstanceNames)

	require.Equal(t, []string{"10.241.0.6", "10.241.0.4", "10.241.0.5"}, rec.DataVolumeMapping.Servers())
	require.Equal(t, []string{"/dev/vdb", "/dev/vdc"}, rec.DataVolumeMapping[0].Devices)
	require.NotNil(t, rec.DescDataVolumeMapping)
	require.Empty(t, rec.DescDataVolumeMapping)

	require.Equal(t, []string{"scratch", "home"}, rec.FilesetNames())
	require.Equal(t, 100, rec.Filesets[0].Size)
	require.True(t, rec.NFS)
	require.Equal(t, "4M", rec.FilesystemBlockSize)
}

func TestDecodeMissingField(t *testing.T) {
	_, err := Decode([]byte(`{
		"compute_cluster_instance_names": ["comp-1"],
		"storage_cluster_instance_names": [],
		"storage_cluster_instance_private_ips": [],
		"protocol_cluster_instance_names": [],
		"afm_cluster_instance_names": [],
		"storage_cluster_with_data_volume_mapping": {},
		"storage_cluster_desc_data_volume_mapping": {},
		"vpc_availability_zones": ["zone-1"]
	}`))
	require.ErrorIs(t, err, planerrors.ErrMissingInputField)

	var missing *planerrors.MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "storage_cluster_desc_instance_private_ips", missing.Field)
}

func TestDecodeEmptyZones(t *testing.T) {
	_, err := Decode([]byte(`{
		"compute_cluster_instance_names": ["comp-1"],
		"storage_cluster_instance_names": [],
		"storage_cluster_instance_private_ips": [],
		"storage_cluster_desc_instance_private_ips": [],
		"protocol_cluster_instance_names": [],
		"afm_cluster_instance_names": [],
		"storage_cluster_with_data_volume_mapping": {},
		"storage_cluster_desc_data_volume_mapping": {},
		"vpc_availability_zones": []
	}`))
	require.Error(t, err)
	require.NotErrorIs(t, err, planerrors.ErrMissingInputField)
	require.Contains(t, err.Error(), "vpc_availability_zones")
}

func TestDecodeBadMapping(t *testing.T) {
	_, err := Decode([]byte(`{"storage_cluster_with_data_volume_mapping": ["/dev/vdb"]}`))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
