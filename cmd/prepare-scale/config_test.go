package main

import (
	"context"
	"errors"
	"testing"

	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSizingFlagPrefixes(t *testing.T) {
	require.Equal(t,
		[]string{"strg-desc", "mgmt", "comp", "strg", "proto", "strg-proto", "afm"},
		sizingFlagPrefixes())
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.encryptionEnabled = true
	cfg.encryptionType = "gklm"
	cfg.bastionIP = "169.48.1.1"
	cfg.bastionUser = "ubuntu"

	s := cfg.settings()
	require.NoError(t, s.Validate())
	require.Equal(t, "32", s.Sizing[nodeclass.ComputeDesc].Memory)

	opts := cfg.writerOptions(zaptest.NewLogger(t))
	require.True(t, opts.EncryptionPlaybooks)
	require.NotNil(t, opts.Bastion)
	require.Equal(t, "169.48.1.1", opts.Bastion.Address)

	cfg.bastionIP = ""
	require.Nil(t, cfg.writerOptions(zaptest.NewLogger(t)).Bastion)
}

func TestEtcdEndpointList(t *testing.T) {
	cfg := &config{etcdEndpoints: " 10.0.0.1:2379, ,10.0.0.2:2379"}
	require.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.etcdEndpointList())

	cfg.etcdEndpoints = ""
	require.Empty(t, cfg.etcdEndpointList())
}

func stubAWSSecret(t *testing.T, fetch secretFetcher) {
	orig := fetchAWSSecret
	fetchAWSSecret = fetch
	t.Cleanup(func() { fetchAWSSecret = orig })
}

func TestFetchGUICredentials(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("no secret configured", func(t *testing.T) {
		cfg := &config{guiUsername: "admin", guiPassword: "secret"}
		require.NoError(t, fetchGUICredentials(context.Background(), logger, cfg))
		require.Equal(t, "admin", cfg.guiUsername)
	})

	t.Run("aws", func(t *testing.T) {
		stubAWSSecret(t, func(ctx context.Context, secretId, region string) (string, string, error) {
			require.Equal(t, "gui-creds", secretId)
			require.Equal(t, "us-east-1", region)
			return "fetched", "pass", nil
		})

		cfg := &config{guiCredsAwsId: "gui-creds", guiCredsAwsRegion: "us-east-1"}
		require.NoError(t, fetchGUICredentials(context.Background(), logger, cfg))
		require.Equal(t, "fetched", cfg.guiUsername)
		require.Equal(t, "pass", cfg.guiPassword)
		require.True(t, cfg.guiCredsFromSecret())
	})

	t.Run("explicit credentials conflict", func(t *testing.T) {
		cfg := &config{guiUsername: "admin", guiCredsAwsId: "gui-creds", guiCredsAwsRegion: "us-east-1"}
		require.Error(t, fetchGUICredentials(context.Background(), logger, cfg))
	})

	t.Run("missing region", func(t *testing.T) {
		cfg := &config{guiCredsAwsId: "gui-creds"}
		require.Error(t, fetchGUICredentials(context.Background(), logger, cfg))
	})

	t.Run("fetch failure", func(t *testing.T) {
		stubAWSSecret(t, func(ctx context.Context, secretId, region string) (string, string, error) {
			return "", "", errors.New("access denied")
		})

		cfg := &config{guiCredsAwsId: "gui-creds", guiCredsAwsRegion: "us-east-1"}
		require.ErrorContains(t, fetchGUICredentials(context.Background(), logger, cfg), "access denied")
	})
}
