package submitter

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	wordNullifier = "0x0000000000000000000000000000000000000000000000000000000000000001"
	wordCommitA   = "0x0000000000000000000000000000000000000000000000000000000000000002"
	wordCommitB   = "0x0000000000000000000000000000000000000000000000000000000000000003"
	testRecipient = "0x9999999999999999999999999999999999999999"
)

func validProofJSON(signals int) proofJSON {
	p := proofJSON{
		PA: [2]string{"11", "12"},
		PB: [2][2]string{{"21", "22"}, {"23", "24"}},
		PC: [2]string{"31", "0x20"},
	}
	for i := 0; i < signals; i++ {
		p.PublicSignals = append(p.PublicSignals, "100")
	}
	return p
}

func validTransferJSON() transferRequestJSON {
	return transferRequestJSON{
		Nullifier:           wordNullifier,
		NewSenderCommitment: wordCommitA,
		RecipientCommitment: wordCommitB,
		StealthData:         [StealthDataLen]string{"1", "2", "0x3", "4"},
		AuditData:           [AuditDataLen]string{"5", "6"},
		Proof:               validProofJSON(TransferPublicSignals),
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestParseTransferRequest(t *testing.T) {
	req, err := ParseTransferRequest(mustJSON(t, validTransferJSON()))
	require.NoError(t, err)

	require.Equal(t, common.HexToHash(wordNullifier), req.Nullifier)
	require.Equal(t, common.HexToHash(wordCommitA), req.NewSenderCommitment)
	require.Equal(t, common.HexToHash(wordCommitB), req.RecipientCommitment)
	// Decimal and hex numerics both parse.
	require.Equal(t, big.NewInt(3), req.StealthData[2])
	require.Equal(t, big.NewInt(0x20), req.Proof.PC[1])
	require.Len(t, req.Proof.PublicSignals, TransferPublicSignals)
	require.Equal(t, KindTransfer, req.Kind())
	require.Equal(t, req.Nullifier, req.NullifierHash())
}

func TestParseTransferRequestShortNullifier(t *testing.T) {
	raw := validTransferJSON()
	raw.Nullifier = "0x0102"

	_, err := ParseTransferRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "nullifier")
}

func TestParseTransferRequestWrongSignalCount(t *testing.T) {
	raw := validTransferJSON()
	raw.Proof.PublicSignals = raw.Proof.PublicSignals[:1]

	_, err := ParseTransferRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "public signals")
}

func TestParseTransferRequestBadNumeric(t *testing.T) {
	raw := validTransferJSON()
	raw.StealthData[0] = "not a number"

	_, err := ParseTransferRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stealthData[0]")
}

func TestParseTransferRequestOverflowingNumeric(t *testing.T) {
	raw := validTransferJSON()
	// 2^256, one past the largest representable value.
	raw.AuditData[1] = "115792089237316195423570985008687907853269984665640564039457584007913129639936"

	_, err := ParseTransferRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "auditData[1]")
}

func TestParseTransferRequestNotJSON(t *testing.T) {
	_, err := ParseTransferRequest([]byte("{"))
	require.Error(t, err)
}

func TestParseWithdrawRequest(t *testing.T) {
	raw := withdrawRequestJSON{
		Amount:        "1000000",
		Nullifier:     wordNullifier,
		NewCommitment: wordCommitA,
		Recipient:     testRecipient,
		Proof:         validProofJSON(WithdrawPublicSignals),
	}

	req, err := ParseWithdrawRequest(mustJSON(t, raw))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000), req.Amount)
	require.Equal(t, common.HexToAddress(testRecipient), req.Recipient)
	require.Len(t, req.Proof.PublicSignals, WithdrawPublicSignals)
	require.Equal(t, KindWithdraw, req.Kind())
}

func TestParseWithdrawRequestBadRecipient(t *testing.T) {
	raw := withdrawRequestJSON{
		Amount:        "1",
		Nullifier:     wordNullifier,
		NewCommitment: wordCommitA,
		Recipient:     "not-an-address",
		Proof:         validProofJSON(WithdrawPublicSignals),
	}

	_, err := ParseWithdrawRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "recipient")
}

func TestParseWithdrawRequestTransferSignals(t *testing.T) {
	raw := withdrawRequestJSON{
		Amount:        "1",
		Nullifier:     wordNullifier,
		NewCommitment: wordCommitA,
		Recipient:     testRecipient,
		Proof:         validProofJSON(TransferPublicSignals),
	}

	_, err := ParseWithdrawRequest(mustJSON(t, raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "public signals")
}
