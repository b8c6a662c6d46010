package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisIsCanonicalAndDeterministic(t *testing.T) {
	g1, err := NewGenesisBlock()
	require.NoError(t, err)
	g2, err := NewGenesisBlock()
	require.NoError(t, err)

	assert.Equal(t, g1.Hash, g2.Hash, "genesis hash must be identical across nodes")
	assert.True(t, g1.IsCanonicalGenesis())
	assert.Equal(t, uint64(0), g1.Index)
	assert.Equal(t, GenesisPrevHash, g1.PrevHash)
	assert.Equal(t, uint64(0), g1.Nonce)
}

func TestBlockHashRoundTrip(t *testing.T) {
	g, err := NewGenesisBlock()
	require.NoError(t, err)

	b := &Block{
		Index:        1,
		Timestamp:    12345.5,
		PrevHash:     g.Hash,
		Nonce:        7,
		Transactions: []*BlockEntry{{Tx: &Transaction{TxID: "t1", SenderPubKey: CoinbaseSender, ReceiverPubKey: "pk", Amount: 10, Signature: CoinbaseSignature}}},
	}
	hash, err := b.ComputeHash()
	require.NoError(t, err)
	b.Hash = hash

	data, err := json.Marshal(b)
	require.NoError(t, err)
	var decoded Block
	require.NoError(t, json.Unmarshal(data, &decoded))

	recomputed, err := decoded.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, b.Hash, recomputed, "H(from_dict(to_dict(b))) == b.Hash")
}

func TestHasDifficulty(t *testing.T) {
	assert.True(t, HasDifficulty("0000abcd", 4))
	assert.False(t, HasDifficulty("0001abcd", 4))
	assert.False(t, HasDifficulty("abc", 4))
}

func TestBlockEntryJSONRoundTrip(t *testing.T) {
	entry := &BlockEntry{IsGenesisMarker: true}
	data, err := entry.MarshalJSON()
	require.NoError(t, err)

	var decoded BlockEntry
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.True(t, decoded.IsGenesisMarker)
	assert.Nil(t, decoded.Tx)
}
