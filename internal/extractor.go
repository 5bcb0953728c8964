package internal

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageSentTopic is the signature hash of the bridge's message-emission
// event, MessageSent(bytes).
var MessageSentTopic = crypto.Keccak256Hash([]byte("MessageSent(bytes)"))

// messageSentABI decodes the event's single non-indexed bytes field.
const messageSentABIJSON = `[{
    "anonymous": false,
    "inputs": [
        {"indexed": false, "internalType": "bytes", "name": "message", "type": "bytes"}
    ],
    "name": "MessageSent",
    "type": "event"
}]`

var messageSentABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(messageSentABIJSON))
	if err != nil {
		panic(fmt.Sprintf("MessageSent ABI parse error: %v", err))
	}
	return parsed
}()

// ExtractMessage scans a source-chain receipt for the first log emitted by
// the given emitter with the expected event signature and decodes its message
// payload. A nil return means the transaction carried no cross-chain message,
// which is a valid outcome (a purely local transfer), not an error.
func ExtractMessage(receipt *types.Receipt, emitter common.Address, topic common.Hash) (*Message, error) {
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}
		// Address comparison is case-insensitive by construction: both
		// sides are parsed 20-byte values, not strings.
		if log.Address != emitter {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != topic {
			continue
		}

		out, err := messageSentABI.Unpack("MessageSent", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode message event: %v", err)
		}
		payload, ok := out[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("message event decoded to unexpected type %T", out[0])
		}

		return &Message{
			Bytes:        payload,
			SourceTxHash: receipt.TxHash,
			LogIndex:     log.Index,
		}, nil
	}

	return nil, nil
}
