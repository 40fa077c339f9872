package main

import (
	"context"
	"strings"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/hpc-scale/prepare-scale/common/hostrecord"
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/pkg/ansible"
	"github.com/hpc-scale/prepare-scale/utils/secretsmanager"
	"github.com/hpc-scale/prepare-scale/utils/sliceutils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type config struct {
	logLevelStr        string
	verbose            bool
	tfInvPath          string
	installInfraPath   string
	instancePrivateKey string

	bastionUser          string
	bastionIP            string
	bastionSSHPrivateKey string

	diskType                string
	defaultDataReplicas     int
	maxDataReplicas         int
	defaultMetadataReplicas int
	maxMetadataReplicas     int

	usingPackerImage        bool
	usingRestInitialization bool

	guiUsername string
	guiPassword string

	enableMROT       bool
	enableCES        bool
	enableAFM        bool
	enableKeyProtect bool

	encryptionServers       string
	encryptionAdminPassword string
	encryptionType          string
	encryptionEnabled       bool

	enableLDAP        bool
	ldapBaseDNs       string
	ldapServer        string
	ldapAdminPassword string

	colocateProtocolInstances bool
	colocateProtocolSubset    bool

	sizing map[string]clusterconfig.RawSizing

	listenAddress   string
	metricsTextfile string
	etcdEndpoints   string
	etcdPrefix      string
	etcdClusterName string

	otlpEndpoint       string
	disableOtlpTraces  bool
	disableOtlpMetrics bool
	traceEverything    bool

	guiCredsAwsId          string
	guiCredsAwsRegion      string
	guiCredsAzureId        string
	guiCredsAzureVaultName string
	guiCredsGcpId          string
	guiCredsGcpProjectId   string
}

// sizingFlagPrefixes lists the distinct sizing flag prefixes, descriptor
// classes share one.
func sizingFlagPrefixes() []string {
	prefixes := make([]string, 0, len(nodeclass.All))
	for _, class := range nodeclass.All {
		prefixes = append(prefixes, clusterconfig.SizingFlagPrefix(class))
	}
	return sliceutils.RemoveDuplicates(prefixes)
}

func readSizing() map[string]clusterconfig.RawSizing {
	sizing := make(map[string]clusterconfig.RawSizing, len(nodeclass.All))
	for _, class := range nodeclass.All {
		prefix := clusterconfig.SizingFlagPrefix(class)
		sizing[class] = clusterconfig.RawSizing{
			Memory:    viper.GetString(prefix + "-memory"),
			VCPUs:     viper.GetString(prefix + "-vcpus-count"),
			Bandwidth: viper.GetString(prefix + "-bandwidth"),
		}
	}
	return sizing
}

func readConfig(logger *zap.Logger) *config {
	config := &config{
		logLevelStr:        viper.GetString("log-level"),
		verbose:            viper.GetBool("verbose"),
		tfInvPath:          viper.GetString("tf-inv-path"),
		installInfraPath:   viper.GetString("install-infra-path"),
		instancePrivateKey: viper.GetString("instance-private-key"),

		bastionUser:          viper.GetString("bastion-user"),
		bastionIP:            viper.GetString("bastion-ip"),
		bastionSSHPrivateKey: viper.GetString("bastion-ssh-private-key"),

		diskType:                viper.GetString("disk-type"),
		defaultDataReplicas:     viper.GetInt("default-data-replicas"),
		maxDataReplicas:         viper.GetInt("max-data-replicas"),
		defaultMetadataReplicas: viper.GetInt("default-metadata-replicas"),
		maxMetadataReplicas:     viper.GetInt("max-metadata-replicas"),

		usingPackerImage:        viper.GetBool("using-packer-image"),
		usingRestInitialization: viper.GetBool("using-rest-initialization"),

		guiUsername: viper.GetString("gui-username"),
		guiPassword: viper.GetString("gui-password"),

		enableMROT:       viper.GetBool("enable-mrot-conf"),
		enableCES:        viper.GetBool("enable-ces"),
		enableAFM:        viper.GetBool("enable-afm"),
		enableKeyProtect: viper.GetBool("enable-key-protect"),

		encryptionServers:       viper.GetString("scale-encryption-servers"),
		encryptionAdminPassword: viper.GetString("scale-encryption-admin-password"),
		encryptionType:          strings.ToLower(viper.GetString("scale-encryption-type")),
		encryptionEnabled:       viper.GetBool("scale-encryption-enabled"),

		enableLDAP:        viper.GetBool("enable-ldap"),
		ldapBaseDNs:       viper.GetString("ldap-basedns"),
		ldapServer:        viper.GetString("ldap-server"),
		ldapAdminPassword: viper.GetString("ldap-admin-password"),

		colocateProtocolInstances: viper.GetBool("colocate-protocol-cluster-instances"),
		colocateProtocolSubset:    viper.GetBool("is-colocate-protocol-subset"),

		sizing: readSizing(),

		listenAddress:   viper.GetString("listen-address"),
		metricsTextfile: viper.GetString("metrics-textfile"),
		etcdEndpoints:   viper.GetString("etcd-endpoints"),
		etcdPrefix:      viper.GetString("etcd-prefix"),
		etcdClusterName: viper.GetString("etcd-cluster-name"),

		otlpEndpoint:       viper.GetString("otlp-endpoint"),
		disableOtlpTraces:  viper.GetBool("disable-otlp-traces"),
		disableOtlpMetrics: viper.GetBool("disable-otlp-metrics"),
		traceEverything:    viper.GetBool("trace-everything"),

		guiCredsAwsId:          viper.GetString("gui-creds-aws-id"),
		guiCredsAwsRegion:      viper.GetString("gui-creds-aws-region"),
		guiCredsAzureId:        viper.GetString("gui-creds-azure-id"),
		guiCredsAzureVaultName: viper.GetString("gui-creds-azure-vault-name"),
		guiCredsGcpId:          viper.GetString("gui-creds-gcp-id"),
		guiCredsGcpProjectId:   viper.GetString("gui-creds-gcp-project-id"),
	}

	logger.Info("parsed planner configuration",
		zap.String("logLevelStr", config.logLevelStr),
		zap.Bool("verbose", config.verbose),
		zap.String("tfInvPath", config.tfInvPath),
		zap.String("installInfraPath", config.installInfraPath),
		zap.String("instancePrivateKey", config.instancePrivateKey),
		zap.String("bastionUser", config.bastionUser),
		zap.String("bastionIP", config.bastionIP),
		zap.String("bastionSSHPrivateKey", config.bastionSSHPrivateKey),
		zap.String("diskType", config.diskType),
		zap.Int("defaultDataReplicas", config.defaultDataReplicas),
		zap.Int("maxDataReplicas", config.maxDataReplicas),
		zap.Int("defaultMetadataReplicas", config.defaultMetadataReplicas),
		zap.Int("maxMetadataReplicas", config.maxMetadataReplicas),
		zap.Bool("usingPackerImage", config.usingPackerImage),
		zap.Bool("usingRestInitialization", config.usingRestInitialization),
		zap.String("guiUsername", config.guiUsername),
		// zap.String("guiPassword", config.guiPassword),
		zap.Bool("enableMROT", config.enableMROT),
		zap.Bool("enableCES", config.enableCES),
		zap.Bool("enableAFM", config.enableAFM),
		zap.Bool("enableKeyProtect", config.enableKeyProtect),
		zap.String("encryptionServers", config.encryptionServers),
		zap.String("encryptionType", config.encryptionType),
		zap.Bool("encryptionEnabled", config.encryptionEnabled),
		zap.Bool("enableLDAP", config.enableLDAP),
		zap.String("ldapBaseDNs", config.ldapBaseDNs),
		zap.String("ldapServer", config.ldapServer),
		zap.Bool("colocateProtocolInstances", config.colocateProtocolInstances),
		zap.Bool("colocateProtocolSubset", config.colocateProtocolSubset),
		zap.Any("sizing", config.sizing),
		zap.String("listenAddress", config.listenAddress),
		zap.String("metricsTextfile", config.metricsTextfile),
		zap.String("etcdEndpoints", config.etcdEndpoints),
		zap.String("etcdPrefix", config.etcdPrefix),
		zap.String("etcdClusterName", config.etcdClusterName),
		zap.String("otlpEndpoint", config.otlpEndpoint),
		zap.Bool("disableOtlpTraces", config.disableOtlpTraces),
		zap.Bool("disableOtlpMetrics", config.disableOtlpMetrics),
		zap.Bool("traceEverything", config.traceEverything),
		zap.String("guiCredsAwsId", config.guiCredsAwsId),
		zap.String("guiCredsAwsRegion", config.guiCredsAwsRegion),
		zap.String("guiCredsAzureId", config.guiCredsAzureId),
		zap.String("guiCredsAzureVaultName", config.guiCredsAzureVaultName),
		zap.String("guiCredsGcpId", config.guiCredsGcpId),
		zap.String("guiCredsGcpProjectId", config.guiCredsGcpProjectId))

	return config
}

func (c *config) settings() *clusterconfig.Settings {
	return &clusterconfig.Settings{
		InstallInfraPath:   c.installInfraPath,
		InstancePrivateKey: c.instancePrivateKey,

		GUIUsername: c.guiUsername,
		GUIPassword: c.guiPassword,

		DiskType: c.diskType,

		DefaultDataReplicas:     c.defaultDataReplicas,
		MaxDataReplicas:         c.maxDataReplicas,
		DefaultMetadataReplicas: c.defaultMetadataReplicas,
		MaxMetadataReplicas:     c.maxMetadataReplicas,

		EnableMROT:       c.enableMROT,
		EnableCES:        c.enableCES,
		EnableAFM:        c.enableAFM,
		EnableKeyProtect: c.enableKeyProtect,

		ColocateProtocolInstances: c.colocateProtocolInstances,
		ColocateProtocolSubset:    c.colocateProtocolSubset,

		Encryption: clusterconfig.EncryptionSettings{
			Enabled:       c.encryptionEnabled,
			Type:          c.encryptionType,
			AdminPassword: c.encryptionAdminPassword,
			Servers:       c.encryptionServers,
		},
		LDAP: clusterconfig.LDAPSettings{
			Enabled:       c.enableLDAP,
			BaseDNs:       c.ldapBaseDNs,
			Server:        c.ldapServer,
			AdminPassword: c.ldapAdminPassword,
		},

		Sizing: c.sizing,
	}
}

func (c *config) bastion() *hostrecord.Bastion {
	if c.bastionIP == "" {
		return nil
	}

	return &hostrecord.Bastion{
		User:    c.bastionUser,
		Address: c.bastionIP,
		KeyFile: c.bastionSSHPrivateKey,
	}
}

func (c *config) writerOptions(logger *zap.Logger) ansible.WriterOptions {
	return ansible.WriterOptions{
		Logger:                  logger.Named("writer"),
		InstallInfraPath:        c.installInfraPath,
		InstancePrivateKey:      c.instancePrivateKey,
		Bastion:                 c.bastion(),
		UsingPackerImage:        c.usingPackerImage,
		UsingRestInitialization: c.usingRestInitialization,
		EncryptionPlaybooks:     c.encryptionEnabled && c.encryptionType == clusterconfig.EncryptionGKLM,
	}
}

func (c *config) guiCredsFromSecret() bool {
	return c.guiCredsAwsId != "" || c.guiCredsAzureId != "" || c.guiCredsGcpId != ""
}

func (c *config) etcdEndpointList() []string {
	var endpoints []string
	for _, endpoint := range strings.Split(c.etcdEndpoints, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

type secretFetcher func(ctx context.Context, secretId string, location string) (string, string, error)

var (
	fetchAWSSecret   secretFetcher = secretsmanager.FetchAWSSecret
	fetchAzureSecret secretFetcher = secretsmanager.FetchAzureSecret
	fetchGcpSecret   secretFetcher = secretsmanager.FetchGcpSecret
)

// fetchGUICredentials replaces the gui credentials with the ones kept in a
// cloud secret store, when one is configured.
func fetchGUICredentials(ctx context.Context, logger *zap.Logger, config *config) error {
	sources := []struct {
		provider      string
		secretId      string
		location      string
		locationError string
		fetch         secretFetcher
	}{
		{"aws secrets manager", config.guiCredsAwsId, config.guiCredsAwsRegion,
			"must specify region and id when fetching secrets from aws", fetchAWSSecret},
		{"azure key vault", config.guiCredsAzureId, config.guiCredsAzureVaultName,
			"must specify key vault name and id when fetching secrets from azure", fetchAzureSecret},
		{"gcp secrets manager", config.guiCredsGcpId, config.guiCredsGcpProjectId,
			"must specify project and secret ids when fetching secrets from gcp", fetchGcpSecret},
	}

	fetched := false
	for _, source := range sources {
		if source.secretId == "" {
			continue
		}

		if fetched || config.guiUsername != "" || config.guiPassword != "" {
			return errors.New("cannot use gui-username or gui-password when fetching creds from cloud provider")
		}

		if source.location == "" {
			return errors.New(source.locationError)
		}

		logger.Info("fetching gui credentials", zap.String("provider", source.provider))

		user, pass, err := source.fetch(ctx, source.secretId, source.location)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch gui credentials from %s", source.provider)
		}

		config.guiUsername, config.guiPassword = user, pass
		fetched = true
	}

	return nil
}
