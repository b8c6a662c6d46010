package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ground-x/ledger/chain"
	"github.com/ground-x/ledger/errs"
	"github.com/ground-x/ledger/types"
)

func TestChainSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c, err := chain.New()
	require.NoError(t, err)
	b := &types.Block{Index: 1, Timestamp: 7, PrevHash: c.LastBlock().Hash}
	_, err = chain.ProofOfWork(b)
	require.NoError(t, err)
	require.True(t, c.AddBlock(b))

	require.NoError(t, SaveChain(dir, c.Blocks()))

	loaded, err := LoadChain(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, chain.IsValidChain(loaded), "pretty-printing must not perturb hashes")
	assert.Equal(t, b.Hash, loaded[1].Hash)
}

func TestLoadChainMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadChain(dir)
	assert.NoError(t, err)
	assert.Nil(t, loaded, "missing snapshot means start from genesis")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ChainFileName), []byte("{not json"), 0o644))
	_, err = LoadChain(dir)
	assert.True(t, errors.Is(err, errs.ErrChainLoadFailure))
}

func TestKeypairRoundTrip(t *testing.T) {
	dir := t.TempDir()

	kp1, err := LoadOrCreateKeypair(dir)
	require.NoError(t, err)
	pub1, err := kp1.PublicPEM()
	require.NoError(t, err)

	// Second load must come from disk and yield the same key text.
	kp2, err := LoadOrCreateKeypair(dir)
	require.NoError(t, err)
	pub2, err := kp2.PublicPEM()
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)
	assert.Equal(t, 0, kp1.Private.D.Cmp(kp2.Private.D))
}

func TestLoadKeypairFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadKeypair(dir)
	assert.True(t, errors.Is(err, errs.ErrKeypairLoadFailure), "missing .env is a load failure")

	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("PRIVATE_KEY_START\ngarbage\n"), 0o600))
	_, err = LoadKeypair(dir)
	assert.True(t, errors.Is(err, errs.ErrKeypairLoadFailure))
}
