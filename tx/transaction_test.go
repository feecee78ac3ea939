package tx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vulkan/chainhash"
	"vulkan/corverrors"
	"vulkan/crypto"
)

func newKeyPair(t *testing.T) *crypto.KeyPair {
	kp := crypto.GenerateKeyPair()
	_, err := kp.PublicKey()
	require.NoError(t, err)
	return kp
}

// signedTx builds a single-input, single-output transaction spending
// prevHash:prevIndex (owned by kp) and signs it.
func signedTx(t *testing.T, kp *crypto.KeyPair, prevHash chainhash.Hash, prevIndex uint32, outs []Output) *Transaction {
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	txn := &Transaction{
		Inputs: []InputRef{{
			PrevTxHash:   prevHash,
			PrevOutIndex: prevIndex,
			PublicKey:    pub,
		}},
		Outputs: outs,
	}
	header := txn.SigningHeader()
	sig, err := kp.Sign(header)
	require.NoError(t, err)
	txn.Inputs[0].Signature = sig
	txn.ID = txn.ComputeID()
	return txn
}

func TestValidateAcceptsWellFormedTransaction(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 50, Address: crypto.Address{}}})
	require.Nil(t, Validate(txn))
}

func TestValidateRejectsNoInputs(t *testing.T) {
	txn := &Transaction{Outputs: []Output{{Amount: 1}}}
	txn.ID = txn.ComputeID()
	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestValidateRejectsNoOutputs(t *testing.T) {
	txn := &Transaction{Inputs: []InputRef{{PrevTxHash: chainhash.SHA256d([]byte("x"))}}}
	txn.ID = txn.ComputeID()
	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestValidateRejectsZeroAmountOutputNonCoinbase(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 0, Address: crypto.Address{}}})
	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestValidateAcceptsCoinbase(t *testing.T) {
	txn := &Transaction{
		Inputs:  []InputRef{{PrevTxHash: chainhash.Zero, PrevOutIndex: 0xffffffff}},
		Outputs: []Output{{Amount: 0, Address: crypto.Address{}}},
	}
	txn.ID = txn.ComputeID()
	require.True(t, txn.IsCoinbase())
	require.Nil(t, Validate(txn))
}

func TestValidateRejectsDuplicateInputs(t *testing.T) {
	kp := newKeyPair(t)
	pub, _ := kp.PublicKey()
	prev := chainhash.SHA256d([]byte("prev"))
	txn := &Transaction{
		Inputs: []InputRef{
			{PrevTxHash: prev, PrevOutIndex: 0, PublicKey: pub},
			{PrevTxHash: prev, PrevOutIndex: 0, PublicKey: pub},
		},
		Outputs: []Output{{Amount: 1, Address: crypto.Address{}}},
	}
	header := txn.SigningHeader()
	sig, _ := kp.Sign(header)
	txn.Inputs[0].Signature = sig
	txn.Inputs[1].Signature = sig
	txn.ID = txn.ComputeID()

	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestValidateRejectsIDMismatch(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 1, Address: crypto.Address{}}})
	txn.ID[0] ^= 0xff
	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 1, Address: crypto.Address{}}})
	txn.Inputs[0].Signature[0] ^= 0xff
	verr := Validate(txn)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestEncodeDecodeBytesRoundTrip(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 42, Address: crypto.Address{}}})

	raw := txn.Bytes()
	decoded, err := DecodeBytes(raw)
	require.NoError(t, err)
	require.Equal(t, txn.ID, decoded.ID)
	require.Equal(t, txn.Inputs, decoded.Inputs)
	require.Equal(t, txn.Outputs, decoded.Outputs)
}

func TestDecodeBytesRejectsTrailingBytes(t *testing.T) {
	kp := newKeyPair(t)
	txn := signedTx(t, kp, chainhash.SHA256d([]byte("prev")), 0, []Output{{Amount: 42, Address: crypto.Address{}}})

	raw := append(txn.Bytes(), 0xff)
	_, err := DecodeBytes(raw)
	require.Error(t, err)
}
