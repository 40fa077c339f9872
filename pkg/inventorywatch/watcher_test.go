package inventorywatch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const recordTemplate = `{
	"compute_cluster_instance_names": [%s],
	"storage_cluster_instance_names": [],
	"storage_cluster_instance_private_ips": [],
	"storage_cluster_desc_instance_private_ips": [],
	"protocol_cluster_instance_names": [],
	"afm_cluster_instance_names": [],
	"storage_cluster_with_data_volume_mapping": {},
	"storage_cluster_desc_data_volume_mapping": {},
	"vpc_availability_zones": ["zone-1"]
}`

func writeRecord(t *testing.T, path, names string) {
	data := []byte(fmt.Sprintf(recordTemplate, names))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestWatcher(t *testing.T, path string) *Watcher[*inventory.Record] {
	w, err := NewWatcher(WatcherOptions[*inventory.Record]{
		Logger: zaptest.NewLogger(t),
		Path:   path,
		Load:   inventory.Load,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcherDeliversUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	writeRecord(t, path, `"comp-1"`)

	w := newTestWatcher(t, path)

	ch := make(chan *inventory.Record, 16)
	unsub := w.Subscribe(ch)
	defer unsub()

	writeRecord(t, path, `"comp-1", "comp-2"`)

	select {
	case rec := <-ch:
		require.Equal(t, []string{"comp-1", "comp-2"}, rec.ComputeInstanceNames)
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
	}
}

func TestWatcherSkipsInvalidUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	writeRecord(t, path, `"comp-1"`)

	w := newTestWatcher(t, path)

	ch := make(chan *inventory.Record, 16)
	defer w.Subscribe(ch)()

	require.NoError(t, os.WriteFile(path, []byte(`{"compute_cluster_instance_names": [`), 0o644))
	writeRecord(t, path, `"comp-9"`)

	require.Eventually(t, func() bool {
		select {
		case rec := <-ch:
			return len(rec.ComputeInstanceNames) == 1 && rec.ComputeInstanceNames[0] == "comp-9"
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.json")
	writeRecord(t, path, `"comp-1"`)

	w := newTestWatcher(t, path)

	ch := make(chan *inventory.Record, 16)
	unsub := w.Subscribe(ch)
	writeRecord(t, filepath.Join(dir, "other.json"), `"comp-2"`)

	select {
	case <-ch:
		t.Fatal("unexpected update for another file")
	case <-time.After(200 * time.Millisecond):
	}

	unsub()
	writeRecord(t, path, `"comp-3"`)

	select {
	case <-ch:
		t.Fatal("unexpected update after unsubscribing")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherRequiresLoad(t *testing.T) {
	_, err := NewWatcher(WatcherOptions[int]{Path: t.TempDir()})
	require.Error(t, err)
}
