package clusterconfig

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/common/validation"
)

const (
	DefaultUser = "root"

	EncryptionGKLM       = "gklm"
	EncryptionKeyProtect = "key_protect"
)

// RawSizing is the sizing of one node class as it was configured, before any
// numeric validation.
type RawSizing struct {
	Memory    string
	VCPUs     string
	Bandwidth string
}

type EncryptionSettings struct {
	Enabled       bool
	Type          string `flag:"scale-encryption-type" validate:"omitempty,oneof=gklm key_protect null"`
	AdminPassword string
	// Servers is a bracketed list of quoted key server addresses.
	Servers string
}

type LDAPSettings struct {
	Enabled       bool
	BaseDNs       string
	Server        string
	AdminPassword string
}

// Settings holds every planning knob that does not come from the inventory
// record. It is built once by the command and never mutated afterwards.
type Settings struct {
	InstallInfraPath   string `flag:"install-infra-path" validate:"required"`
	InstancePrivateKey string `flag:"instance-private-key" validate:"required"`
	User               string `flag:"-"`

	GUIUsername string `flag:"gui-username" validate:"required"`
	GUIPassword string `flag:"gui-password" validate:"required"`

	DiskType string `flag:"disk-type"`

	DefaultDataReplicas     int `flag:"default-data-replicas" validate:"gte=0"`
	MaxDataReplicas         int `flag:"max-data-replicas" validate:"gte=0"`
	DefaultMetadataReplicas int `flag:"default-metadata-replicas" validate:"gte=0"`
	MaxMetadataReplicas     int `flag:"max-metadata-replicas" validate:"gte=0"`

	EnableMROT       bool
	EnableCES        bool
	EnableAFM        bool
	EnableKeyProtect bool

	// Colocation only describes how the protocol nodes were provisioned, the
	// node classes themselves are derived from the inventory.
	ColocateProtocolInstances bool
	ColocateProtocolSubset    bool

	Encryption EncryptionSettings
	LDAP       LDAPSettings

	// Sizing is keyed by node class. Classes without an entry get no tuning.
	Sizing map[string]RawSizing
}

var (
	settingsValidate     *validator.Validate
	settingsValidateOnce sync.Once
)

func (s *Settings) Validate() error {
	settingsValidateOnce.Do(func() {
		settingsValidate = validation.New("flag")
	})
	return validation.Struct(settingsValidate, "settings", s)
}

func (s *Settings) user() string {
	if s.User == "" {
		return DefaultUser
	}
	return s.User
}

// SizingFlagPrefix returns the flag prefix used for the sizing of a node class.
func SizingFlagPrefix(class string) string {
	switch class {
	case nodeclass.Compute:
		return "comp"
	case nodeclass.Management:
		return "mgmt"
	case nodeclass.StorageDesc, nodeclass.ComputeDesc:
		return "strg-desc"
	case nodeclass.Storage:
		return "strg"
	case nodeclass.Protocol:
		return "proto"
	case nodeclass.StorageProtocol:
		return "strg-proto"
	case nodeclass.AfmGateway:
		return "afm"
	}
	return class
}
