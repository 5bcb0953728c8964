package internal

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testEmitter = common.HexToAddress("0x248EC2E5595480fF371031698ae3a4099b8dC229")
	otherAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// encodeMessageData ABI-encodes a payload the way the emitter contract does
// for MessageSent's data section.
func encodeMessageData(t *testing.T, payload []byte) []byte {
	t.Helper()
	bytesTy, err := abi.NewType("bytes", "", nil)
	require.NoError(t, err)
	data, err := abi.Arguments{{Type: bytesTy}}.Pack(payload)
	require.NoError(t, err)
	return data
}

func messageLog(t *testing.T, addr common.Address, topic common.Hash, payload []byte, index uint) *types.Log {
	t.Helper()
	return &types.Log{
		Address: addr,
		Topics:  []common.Hash{topic},
		Data:    encodeMessageData(t, payload),
		Index:   index,
	}
}

func TestExtractMessage(t *testing.T) {
	payload := []byte("bridge me")
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0xaaaa"),
		Logs: []*types.Log{
			messageLog(t, otherAddr, MessageSentTopic, []byte("someone else's"), 0),
			messageLog(t, testEmitter, MessageSentTopic, payload, 1),
			messageLog(t, testEmitter, MessageSentTopic, []byte("second, ignored"), 2),
		},
	}

	msg, err := ExtractMessage(receipt, testEmitter, MessageSentTopic)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, payload, msg.Bytes)
	require.Equal(t, uint(1), msg.LogIndex)
	require.Equal(t, receipt.TxHash, msg.SourceTxHash)
}

func TestExtractMessageNoMatch(t *testing.T) {
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0xbbbb"),
		Logs: []*types.Log{
			messageLog(t, otherAddr, MessageSentTopic, []byte("not ours"), 0),
			{
				Address: testEmitter,
				Topics:  []common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))},
			},
		},
	}

	msg, err := ExtractMessage(receipt, testEmitter, MessageSentTopic)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestExtractMessageEmptyReceipt(t *testing.T) {
	msg, err := ExtractMessage(&types.Receipt{}, testEmitter, MessageSentTopic)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestExtractMessageLogWithoutTopics(t *testing.T) {
	receipt := &types.Receipt{
		Logs: []*types.Log{{Address: testEmitter}},
	}
	msg, err := ExtractMessage(receipt, testEmitter, MessageSentTopic)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestContentHashDependsOnlyOnBytes(t *testing.T) {
	payload := []byte("identical payload")

	first := &types.Receipt{
		TxHash: common.HexToHash("0x01"),
		Logs:   []*types.Log{messageLog(t, testEmitter, MessageSentTopic, payload, 0)},
	}
	second := &types.Receipt{
		TxHash: common.HexToHash("0x02"),
		Logs: []*types.Log{
			messageLog(t, otherAddr, MessageSentTopic, []byte("noise"), 0),
			messageLog(t, testEmitter, MessageSentTopic, payload, 5),
		},
	}

	m1, err := ExtractMessage(first, testEmitter, MessageSentTopic)
	require.NoError(t, err)
	m2, err := ExtractMessage(second, testEmitter, MessageSentTopic)
	require.NoError(t, err)

	// Same bytes in different transactions correlate to the same key.
	require.Equal(t, m1.ContentHash(), m2.ContentHash())
	require.Equal(t, crypto.Keccak256Hash(payload), m1.ContentHash())
}
