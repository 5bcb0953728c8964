package submitter

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func TestEncodeTransferCall(t *testing.T) {
	data, err := encodeCall(validTransferRequest())
	require.NoError(t, err)

	method, ok := bridgeABI.Methods["privateTransfer"]
	require.True(t, ok)
	require.Equal(t, method.ID, data[:4])

	// Same request encodes identically.
	again, err := encodeCall(validTransferRequest())
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestEncodeWithdrawCall(t *testing.T) {
	data, err := encodeCall(validWithdrawRequest())
	require.NoError(t, err)

	method, ok := bridgeABI.Methods["withdraw"]
	require.True(t, ok)
	require.Equal(t, method.ID, data[:4])
}

func TestEncodeReceiveMessage(t *testing.T) {
	data, err := encodeReceiveMessage([]byte("payload"), []byte("attestation"))
	require.NoError(t, err)

	method, ok := bridgeABI.Methods["receiveMessage"]
	require.True(t, ok)
	require.Equal(t, method.ID, data[:4])
}

func TestEncodeTransferWrongSignalCount(t *testing.T) {
	req := validTransferRequest()
	req.Proof.PublicSignals = append(req.Proof.PublicSignals, big.NewInt(1))

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "public signals")
}

func TestEncodeWithdrawWrongSignalCount(t *testing.T) {
	req := validWithdrawRequest()
	req.Proof.PublicSignals = req.Proof.PublicSignals[:TransferPublicSignals]

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "public signals")
}

func TestEncodeRejectsCoordinateOutsideBaseField(t *testing.T) {
	req := validTransferRequest()
	req.Proof.PA[0] = new(big.Int).Set(fp.Modulus())

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pA[0]")
}

func TestEncodeRejectsSignalOutsideScalarField(t *testing.T) {
	req := validWithdrawRequest()
	req.Proof.PublicSignals[4] = new(big.Int).Set(fr.Modulus())

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "publicSignals[4]")
}

func TestEncodeRejectsNilValues(t *testing.T) {
	req := validTransferRequest()
	req.Proof.PB[1][0] = nil

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pB[1][0]")
}

func TestEncodeRejectsNilStealthData(t *testing.T) {
	req := validTransferRequest()
	req.StealthData[2] = nil

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stealthData[2]")
}

func TestEncodeRejectsNegativeWithdrawAmount(t *testing.T) {
	req := validWithdrawRequest()
	req.Amount = big.NewInt(-1)

	_, err := encodeCall(req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "amount")
}
