package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/types"
)

func cfg(width uint16) bank.Config {
	return bank.Config{VectorWidth: width, MaxEdgesPerEntry: 8, IndexKind: bank.BruteForce()}
}

func TestCreateBootstrapsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "engine")

	e, err := Create(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, e.Dir())
	assert.Empty(t, e.Cluster().Banks())

	info, err := os.Stat(sub)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateRefusesExistingSnapshots(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(dir)
	require.NoError(t, err)

	id := types.NewBankId(1, "sem", 0)
	b := e.GetOrCreateBank(id, "sem", cfg(4))
	_, err = b.Insert([]types.Signal{types.FromSigned(1), types.FromSigned(0), types.FromSigned(0), types.FromSigned(0)}, types.Hot, 1, 200)
	require.NoError(t, err)
	_, err = e.FlushDirty(1)
	require.NoError(t, err)

	_, err = Create(dir)
	assert.Error(t, err)
}

func TestOpenRoundTripsWrittenEntries(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(dir)
	require.NoError(t, err)

	id := types.NewBankId(1, "sem", 0)
	b := e.GetOrCreateBank(id, "sem", cfg(3))
	entry, err := b.Insert([]types.Signal{types.FromSigned(100), types.FromSigned(-50), types.FromSigned(0)}, types.Hot, 1, 200)
	require.NoError(t, err)

	n, err := e.FlushDirty(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reopened, err := Open(dir, bank.BruteForce(), nil)
	require.NoError(t, err)

	reloadedBank, ok := reopened.Cluster().Get(id)
	require.True(t, ok)
	got, ok := reloadedBank.Get(entry)
	require.True(t, ok)
	assert.Equal(t, int32(100), got.Vector[0].Signed())
	assert.Equal(t, int32(-50), got.Vector[1].Signed())
}

func TestFlushWritesJournalWithoutSnapshotting(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(dir)
	require.NoError(t, err)

	id := types.NewBankId(1, "sem", 0)
	b := e.GetOrCreateBank(id, "sem", cfg(1))
	_, err = b.Insert([]types.Signal{types.FromSigned(1)}, types.Hot, 1, 200)
	require.NoError(t, err)

	require.NoError(t, e.Flush())

	info, err := os.Stat(filepath.Join(dir, "cluster.journal"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	matches, err := filepath.Glob(filepath.Join(dir, "*.bank"))
	require.NoError(t, err)
	assert.Empty(t, matches, "flush alone must not snapshot")
}

func TestOpenReplaysJournalWithoutPriorFlush(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(dir)
	require.NoError(t, err)

	id := types.NewBankId(1, "sem", 0)
	b := e.GetOrCreateBank(id, "sem", cfg(1))
	entry, err := b.Insert([]types.Signal{types.FromSigned(1)}, types.Hot, 1, 200)
	require.NoError(t, err)
	require.NoError(t, e.Flush())

	reopened, err := Open(dir, bank.BruteForce(), nil)
	require.NoError(t, err)

	reloadedBank, ok := reopened.Cluster().Get(id)
	require.True(t, ok)
	_, ok = reloadedBank.Get(entry)
	assert.True(t, ok, "journal-only mutation must survive a reload with no prior snapshot")
}
