package nodeclass

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/stretchr/testify/require"
)

func TestDeriveComputeDefaults(t *testing.T) {
	s, err := ParseSizing("comp", "32", "8", "16000")
	require.NoError(t, err)

	tn := Derive(Compute, s)
	require.Equal(t, &Tuning{
		Class:              Compute,
		Pagepool:           "4G",
		MaxStatCache:       "256K",
		MaxFilesToCache:    "256K",
		MaxReceiverThreads: 8,
		MaxMBpS:            4000,
	}, tn)
}

func TestDeriveFixedCacheClasses(t *testing.T) {
	for _, class := range []string{Management, StorageDesc, ComputeDesc, Storage} {
		tn := Derive(class, Sizing{MemoryGB: 64, VCPUs: 16, BandwidthMbps: 32000})
		require.Equal(t, "16G", tn.Pagepool, class)
		require.Equal(t, "128K", tn.MaxStatCache, class)
		require.Equal(t, "128K", tn.MaxFilesToCache, class)
		require.Equal(t, 8000, tn.MaxMBpS, class)
		require.Empty(t, tn.AfmHardMemThreshold, class)
	}
}

func TestDeriveScaledCaches(t *testing.T) {
	cases := []struct {
		memory float64
		stat   string
		files  string
	}{
		{32, "256K", "256K"},
		{64, "512K", "512K"},
		{127, "512K", "1016K"},
		{128, "512K", "1M"},
		{200, "512K", "1M"},
		{256, "512K", "2M"},
		{1024, "512K", "3M"},
	}

	for _, c := range cases {
		tn := Derive(Protocol, Sizing{MemoryGB: c.memory})
		require.Equal(t, c.stat, tn.MaxStatCache, "memory=%v", c.memory)
		require.Equal(t, c.files, tn.MaxFilesToCache, "memory=%v", c.memory)
	}
}

func TestDeriveStorageProtocolPagepool(t *testing.T) {
	require.Equal(t, "12G", Derive(StorageProtocol, Sizing{MemoryGB: 32}).Pagepool)
	require.Equal(t, "256G", Derive(StorageProtocol, Sizing{MemoryGB: 4096}).Pagepool)
}

func TestDeriveAfmThreshold(t *testing.T) {
	tn := Derive(AfmGateway, Sizing{MemoryGB: 32, VCPUs: 8, BandwidthMbps: 16000})
	require.Equal(t, "40G", tn.AfmHardMemThreshold)
	require.Equal(t, "8G", tn.Pagepool)
}

func TestPagepoolCaps(t *testing.T) {
	caps := map[string]int{
		Compute:         16,
		StorageProtocol: 256,
		Storage:         32,
		Management:      32,
		AfmGateway:      32,
	}

	for class, limit := range caps {
		for _, memory := range []float64{0, 1, 7.5, 32, 133, 1000, 65536, 1e9} {
			tn := Derive(class, Sizing{MemoryGB: memory})
			gb, err := strconv.Atoi(tn.Pagepool[:len(tn.Pagepool)-1])
			require.NoError(t, err)
			require.LessOrEqual(t, gb, limit, fmt.Sprintf("%s memory=%v", class, memory))
		}
	}
}

func TestParseSizingRejectsMalformedInput(t *testing.T) {
	_, err := ParseSizing("mgmt", "lots", "8", "16000")
	require.ErrorIs(t, err, planerrors.ErrInvalidNumericInput)
	require.Contains(t, err.Error(), "mgmt-memory")

	_, err = ParseSizing("mgmt", "32", "8.5", "16000")
	require.ErrorIs(t, err, planerrors.ErrInvalidNumericInput)
	require.Contains(t, err.Error(), "mgmt-vcpus-count")

	_, err = ParseSizing("mgmt", "32", "8", "")
	require.ErrorIs(t, err, planerrors.ErrInvalidNumericInput)

	_, err = ParseSizing("mgmt", "-1", "8", "16000")
	require.ErrorIs(t, err, planerrors.ErrInvalidNumericInput)

	s, err := ParseSizing("mgmt", " 15.5 ", "4", "1000")
	require.NoError(t, err)
	require.Equal(t, Sizing{MemoryGB: 15.5, VCPUs: 4, BandwidthMbps: 1000}, s)
}
