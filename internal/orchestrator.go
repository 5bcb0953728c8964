package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/veilbridge/relayer/internal/clients"
	"github.com/veilbridge/relayer/internal/metrics"
	"github.com/veilbridge/relayer/internal/submitter"
)

// SourceReader resolves source-chain receipts. The EVM client implements it.
type SourceReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// AttestationFetcher obtains the oracle attestation for a content hash.
type AttestationFetcher interface {
	FetchAttestation(ctx context.Context, contentHash common.Hash) ([]byte, error)
}

// MessageSubmitter sends an attested message to the destination contract.
type MessageSubmitter interface {
	SubmitMessage(ctx context.Context, message, attestation []byte) *submitter.TxOutcome
}

// OrchestratorConfig identifies the source-side emitter to extract from.
type OrchestratorConfig struct {
	EmitterAddress common.Address
	EventTopic     common.Hash
}

// Orchestrator drives a single relay: source receipt, message extraction,
// attestation, destination submission.
type Orchestrator struct {
	cfg       OrchestratorConfig
	source    SourceReader
	oracle    AttestationFetcher
	submitter MessageSubmitter
	logger    *zap.Logger
}

func NewOrchestrator(logger *zap.Logger, cfg OrchestratorConfig, source SourceReader, oracle AttestationFetcher, sub MessageSubmitter) *Orchestrator {
	if cfg.EventTopic == (common.Hash{}) {
		cfg.EventTopic = MessageSentTopic
	}
	return &Orchestrator{
		cfg:       cfg,
		source:    source,
		oracle:    oracle,
		submitter: sub,
		logger:    logger.With(zap.String("component", "Orchestrator")),
	}
}

// Relay relays the cross-chain message emitted by the given source
// transaction. A transaction without a message terminates successfully with a
// nil outcome; ErrSourceTxNotFound and the attestation timeout propagate to
// the caller as hard stops.
func (o *Orchestrator) Relay(ctx context.Context, sourceTxHash common.Hash) (*submitter.TxOutcome, error) {
	logger := o.logger.With(zap.String("sourceTx", sourceTxHash.Hex()))

	receipt, err := o.source.TransactionReceipt(ctx, sourceTxHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			logger.Warn("Source transaction has no receipt")
			return nil, ErrSourceTxNotFound
		}
		return nil, fmt.Errorf("source receipt lookup: %v", err)
	}
	if receipt == nil {
		return nil, ErrSourceTxNotFound
	}

	message, err := ExtractMessage(receipt, o.cfg.EmitterAddress, o.cfg.EventTopic)
	if err != nil {
		return nil, fmt.Errorf("extract message: %v", err)
	}
	if message == nil {
		// Not a relay failure: the transaction simply carried no
		// cross-chain message.
		logger.Info("No message in transaction, nothing to relay")
		return nil, nil
	}

	contentHash := message.ContentHash()
	logger.Info("Message extracted",
		zap.Int("messageLength", len(message.Bytes)),
		zap.Uint("logIndex", message.LogIndex),
		zap.String("contentHash", contentHash.Hex()))

	attestation, err := o.oracle.FetchAttestation(ctx, contentHash)
	if err != nil {
		if errors.Is(err, clients.ErrAttestationTimeout) {
			metrics.AttestationTimeouts.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("fetch attestation: %v", err)
	}

	outcome := o.submitter.SubmitMessage(ctx, message.Bytes, attestation)
	if outcome.Confirmed() {
		metrics.MessagesRelayed.Inc()
		logger.Info("Message relayed",
			zap.String("destTx", outcome.TxHash.Hex()),
			zap.Uint64("blockNumber", outcome.BlockNumber))
	} else {
		logger.Warn("Destination submission failed",
			zap.String("destTx", outcome.TxHash.Hex()),
			zap.String("reason", outcome.Reason))
	}

	return outcome, nil
}
