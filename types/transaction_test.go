package types

import (
	"testing"

	"github.com/ground-x/ledger/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	sender, err := keys.Generate()
	require.NoError(t, err)
	receiver, err := keys.Generate()
	require.NoError(t, err)
	receiverPEM, err := receiver.PublicPEM()
	require.NoError(t, err)

	tx, err := Sign(sender, receiverPEM, 10, 1, 1000.0)
	require.NoError(t, err)

	assert.False(t, tx.IsCoinbase())
	assert.True(t, tx.VerifySignature())

	tx.Amount = 999
	assert.False(t, tx.VerifySignature(), "tampering must invalidate the signature")
}

func TestCoinbaseTransaction(t *testing.T) {
	minerKP, err := keys.Generate()
	require.NoError(t, err)
	minerPEM, err := minerKP.PublicPEM()
	require.NoError(t, err)

	cb := NewCoinbase(minerPEM, 11, 1000.0)
	assert.True(t, cb.IsCoinbase())
	assert.Equal(t, CoinbaseSignature, cb.Signature)
}

func TestTxIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewTxID(), NewTxID())
}
