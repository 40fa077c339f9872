package clusterconfig

import (
	"path/filepath"
	"strings"

	"github.com/hpc-scale/prepare-scale/common/inivalue"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/common/topologycalc"
)

const (
	guiAdminRole  = "Administrator"
	clusterPrefix = "spectrum-scale"
)

// ClusterVars is the [all:vars] section of the host inventory.
type ClusterVars struct {
	ScaleVersion         string      `json:"scale_version"`
	ClusterName          string      `json:"scale_cluster_clustername"`
	ClusterType          string      `json:"scale_cluster_type"`
	GUIAdminUser         string      `json:"scale_gui_admin_user"`
	GUIAdminPassword     string      `json:"-"`
	SyncReplication      bool        `json:"scale_sync_replication_config"`
	ProfileName          string      `json:"scale_cluster_profile_name"`
	ProfileDir           string      `json:"scale_cluster_profile_dir_path"`
	EnableMROT           bool        `json:"enable_mrot"`
	EnableCES            bool        `json:"enable_ces"`
	EnableAFM            bool        `json:"enable_afm"`
	EnableKeyProtect     bool        `json:"enable_key_protect"`
	StorageSubnetCIDR    string      `json:"storage_subnet_cidr"`
	ComputeSubnetCIDR    string      `json:"compute_subnet_cidr"`
	ProtocolGatewayIP    string      `json:"protocol_gateway_ip"`
	RemoteClusterName    string      `json:"scale_remote_cluster_clustername"`
	EncryptionServers    []string    `json:"scale_encryption_servers"`
	EncryptionPassword   string      `json:"-"`
	EncryptionType       string      `json:"scale_encryption_type"`
	FilesystemMountpoint string      `json:"filesystem_mountpoint"`
	Region               string      `json:"vpc_region"`
	EnableLDAP           bool        `json:"enable_ldap"`
	LDAPBaseDNs          string      `json:"ldap_basedns"`
	LDAPServer           string      `json:"ldap_server"`
	LDAPAdminPassword    string      `json:"-"`
	AfmCosBucketParams   interface{} `json:"scale_afm_cos_bucket_params"`
	AfmCosFilesetsParams interface{} `json:"scale_afm_cos_filesets_params"`
}

func profilePath(installPath, clusterType string) string {
	switch clusterType {
	case topologycalc.ComputeCluster:
		return filepath.Join(installPath, "computesncparams")
	case topologycalc.StorageCluster:
		return filepath.Join(installPath, "storagesncparams")
	default:
		return filepath.Join(installPath, "scalesncparams")
	}
}

// ClusterName is the resource prefix, or a name derived from the cluster type.
func ClusterName(rec *inventory.Record, clusterType string) string {
	if rec.ResourcePrefix != "" {
		return rec.ResourcePrefix
	}
	return clusterPrefix + "." + clusterType
}

// ParseEncryptionServers splits a bracketed, quoted server list such as
// ["10.0.0.5","10.0.0.6"]. Escaped quotes are dropped.
func ParseEncryptionServers(s string) []string {
	s = strings.Trim(s, "[]")
	if strings.TrimSpace(s) == "" {
		return []string{}
	}

	s = strings.ReplaceAll(s, `\"`, "")
	parts := strings.Split(s, ",")
	servers := make([]string, 0, len(parts))
	for _, part := range parts {
		servers = append(servers, strings.Trim(strings.TrimSpace(part), `"`))
	}
	return servers
}

func newClusterVars(rec *inventory.Record, s *Settings, clusterType string) *ClusterVars {
	profile := profilePath(s.InstallInfraPath, clusterType)

	vars := &ClusterVars{
		ScaleVersion:         rec.ScaleVersion,
		ClusterName:          ClusterName(rec, clusterType),
		ClusterType:          clusterType,
		GUIAdminUser:         s.GUIUsername,
		GUIAdminPassword:     s.GUIPassword,
		SyncReplication:      clusterType != topologycalc.ComputeCluster && rec.MultiAZ(),
		ProfileName:          strings.TrimSuffix(filepath.Base(profile), filepath.Ext(profile)),
		ProfileDir:           filepath.Dir(profile),
		EnableMROT:           s.EnableMROT,
		EnableCES:            s.EnableCES,
		EnableAFM:            s.EnableAFM,
		EnableKeyProtect:     s.EnableKeyProtect,
		StorageSubnetCIDR:    rec.StorageSubnetCIDR,
		ComputeSubnetCIDR:    rec.ComputeSubnetCIDR,
		ProtocolGatewayIP:    rec.ProtocolGatewayIP,
		RemoteClusterName:    rec.RemoteClusterName,
		EncryptionServers:    ParseEncryptionServers(s.Encryption.Servers),
		EncryptionPassword:   s.Encryption.AdminPassword,
		EncryptionType:       s.Encryption.Type,
		EnableLDAP:           s.LDAP.Enabled,
		LDAPBaseDNs:          s.LDAP.BaseDNs,
		LDAPServer:           s.LDAP.Server,
		LDAPAdminPassword:    s.LDAP.AdminPassword,
		AfmCosBucketParams:   rec.AfmCosBucketDetails,
		AfmCosFilesetsParams: rec.AfmConfigDetails,
	}

	if s.Encryption.Enabled && s.Encryption.Type != EncryptionGKLM {
		vars.FilesystemMountpoint = rec.FilesystemMountpoint
		vars.Region = rec.Region
	}

	return vars
}

// Entry is a single inventory variable rendered for an INI file.
type Entry struct {
	Key   string
	Value string
}

// Entries renders the variables in inventory order.
func (v *ClusterVars) Entries() []Entry {
	return []Entry{
		{"scale_version", v.ScaleVersion},
		{"scale_cluster_clustername", v.ClusterName},
		{"scale_cluster_type", v.ClusterType},
		{"scale_service_gui_start", inivalue.Bool(true)},
		{"scale_gui_admin_user", v.GUIAdminUser},
		{"scale_gui_admin_password", v.GUIAdminPassword},
		{"scale_gui_admin_role", guiAdminRole},
		{"scale_sync_replication_config", inivalue.Bool(v.SyncReplication)},
		{"scale_cluster_profile_name", v.ProfileName},
		{"scale_cluster_profile_dir_path", v.ProfileDir},
		{"enable_mrot", inivalue.Bool(v.EnableMROT)},
		{"enable_ces", inivalue.Bool(v.EnableCES)},
		{"enable_afm", inivalue.Bool(v.EnableAFM)},
		{"enable_key_protect", inivalue.Bool(v.EnableKeyProtect)},
		{"storage_subnet_cidr", v.StorageSubnetCIDR},
		{"compute_subnet_cidr", v.ComputeSubnetCIDR},
		{"protocol_gateway_ip", v.ProtocolGatewayIP},
		{"scale_remote_cluster_clustername", v.RemoteClusterName},
		{"scale_encryption_servers", inivalue.Format(v.EncryptionServers)},
		{"scale_encryption_admin_password", v.EncryptionPassword},
		{"scale_encryption_type", v.EncryptionType},
		{"filesystem_mountpoint", v.FilesystemMountpoint},
		{"vpc_region", v.Region},
		{"enable_ldap", inivalue.Bool(v.EnableLDAP)},
		{"ldap_basedns", v.LDAPBaseDNs},
		{"ldap_server", v.LDAPServer},
		{"ldap_admin_password", v.LDAPAdminPassword},
		{"scale_afm_cos_bucket_params", afmParams(v.AfmCosBucketParams)},
		{"scale_afm_cos_filesets_params", afmParams(v.AfmCosFilesetsParams)},
	}
}

func afmParams(v interface{}) string {
	if v == nil {
		return inivalue.Format([]interface{}{})
	}
	return inivalue.Format(v)
}
