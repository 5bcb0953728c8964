package submitter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/veilbridge/relayer/internal/metrics"
)

// DefaultGasLimit is the fixed ceiling used for every destination call. It is
// chosen generously above the contract's typical cost; overestimating only
// reserves refundable gas, underestimating would revert the call.
const DefaultGasLimit = 3_000_000

// ChainBackend is the destination-chain surface the submitter needs. The EVM
// client implements it; tests substitute a fake.
type ChainBackend interface {
	// NullifierUsed reads the contract's usedNullifiers predicate.
	NullifierUsed(ctx context.Context, contract common.Address, nullifier common.Hash) (bool, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// SendContractTransaction signs and sends a call to the bridge contract.
	// Implementations must serialize nonce assignment per signing identity.
	SendContractTransaction(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Status of a submission attempt. Terminal; a retry is a new attempt that
// produces a new TxOutcome.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// TxOutcome is the single source of truth for what a submission attempt did.
// A failed outcome with an empty TxHash means nothing was sent; a failed
// outcome with a hash means gas was spent, which matters for operator
// accounting even though the intended effect did not occur.
type TxOutcome struct {
	TxHash      common.Hash
	Status      Status
	BlockNumber uint64
	GasUsed     uint64
	Reason      string
}

func (o *TxOutcome) Confirmed() bool { return o.Status == StatusConfirmed }

// Config holds the destination-side knobs for the submitter.
type Config struct {
	ContractAddress common.Address
	// MaxGasPrice in wei. Submissions are refused, not sent, when the
	// network estimate exceeds it.
	MaxGasPrice *big.Int
	// GasLimit defaults to DefaultGasLimit when zero.
	GasLimit uint64
}

// Submitter sends relay requests and attested messages to the bridge
// contract. Submit never returns an error: every failure path is folded into
// the returned TxOutcome so callers have exactly one result to inspect.
type Submitter struct {
	cfg     Config
	backend ChainBackend
	logger  *zap.Logger
}

func New(logger *zap.Logger, cfg Config, backend ChainBackend) *Submitter {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	return &Submitter{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With(zap.String("component", "Submitter")),
	}
}

// Submit runs one submission attempt: nullifier check, encoding, gas-price
// check, send, confirmation. It short-circuits on the first failing step and
// re-runs the nullifier check on every fresh attempt, so a blind retry after
// a crash cannot double-spend.
func (s *Submitter) Submit(ctx context.Context, req RelayRequest) *TxOutcome {
	logger := s.logger.With(
		zap.String("kind", string(req.Kind())),
		zap.String("nullifier", req.NullifierHash().Hex()))

	used, err := s.backend.NullifierUsed(ctx, s.cfg.ContractAddress, req.NullifierHash())
	if err != nil {
		return s.failed(logger, metrics.ReasonTransport, common.Hash{},
			fmt.Sprintf("nullifier check failed: %v", err))
	}
	if used {
		return s.failed(logger, metrics.ReasonNullifierUsed, common.Hash{},
			"nullifier already used")
	}

	data, err := encodeCall(req)
	if err != nil {
		return s.failed(logger, metrics.ReasonEncoding, common.Hash{},
			fmt.Sprintf("encode request: %v", err))
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return s.failed(logger, metrics.ReasonTransport, common.Hash{},
			fmt.Sprintf("gas price estimate failed: %v", err))
	}
	if s.cfg.MaxGasPrice != nil && gasPrice.Cmp(s.cfg.MaxGasPrice) > 0 {
		return s.failed(logger, metrics.ReasonGasPrice, common.Hash{},
			fmt.Sprintf("gas price too high: %s > %s wei", gasPrice, s.cfg.MaxGasPrice))
	}

	return s.sendAndConfirm(ctx, logger, data, gasPrice)
}

// SubmitMessage sends an attested cross-chain message to receiveMessage. The
// same gas-price ceiling and confirmation semantics apply; there is no
// nullifier step because replay protection for messages lives in the
// contract's content-hash bookkeeping.
func (s *Submitter) SubmitMessage(ctx context.Context, message, attestation []byte) *TxOutcome {
	logger := s.logger.With(zap.Int("messageLength", len(message)))

	data, err := encodeReceiveMessage(message, attestation)
	if err != nil {
		return s.failed(logger, metrics.ReasonEncoding, common.Hash{},
			fmt.Sprintf("encode message: %v", err))
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return s.failed(logger, metrics.ReasonTransport, common.Hash{},
			fmt.Sprintf("gas price estimate failed: %v", err))
	}
	if s.cfg.MaxGasPrice != nil && gasPrice.Cmp(s.cfg.MaxGasPrice) > 0 {
		return s.failed(logger, metrics.ReasonGasPrice, common.Hash{},
			fmt.Sprintf("gas price too high: %s > %s wei", gasPrice, s.cfg.MaxGasPrice))
	}

	return s.sendAndConfirm(ctx, logger, data, gasPrice)
}

func (s *Submitter) sendAndConfirm(ctx context.Context, logger *zap.Logger, data []byte, gasPrice *big.Int) *TxOutcome {
	logger.Debug("Sending transaction",
		zap.String("contract", s.cfg.ContractAddress.Hex()),
		zap.Uint64("gasLimit", s.cfg.GasLimit),
		zap.String("gasPrice", gasPrice.String()))

	tx, err := s.backend.SendContractTransaction(ctx, s.cfg.ContractAddress, data, s.cfg.GasLimit, gasPrice)
	if err != nil {
		return s.failed(logger, metrics.ReasonTransport, common.Hash{},
			fmt.Sprintf("send transaction: %v", err))
	}

	logger.Info("Transaction sent, waiting for confirmation",
		zap.String("txHash", tx.Hash().Hex()))

	receipt, err := s.backend.WaitMined(ctx, tx)
	if err != nil {
		// The transaction may still land; the hash lets the operator
		// re-query it later instead of resubmitting.
		return s.failed(logger, metrics.ReasonTransport, tx.Hash(),
			fmt.Sprintf("wait for confirmation: %v", err))
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		outcome := s.failed(logger, metrics.ReasonReverted, tx.Hash(), "transaction reverted")
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
		outcome.GasUsed = receipt.GasUsed
		return outcome
	}

	logger.Info("Transaction confirmed",
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("blockNumber", receipt.BlockNumber.Uint64()),
		zap.Uint64("gasUsed", receipt.GasUsed))

	metrics.SubmissionsConfirmed.Inc()
	return &TxOutcome{
		TxHash:      tx.Hash(),
		Status:      StatusConfirmed,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
}

func (s *Submitter) failed(logger *zap.Logger, reason string, txHash common.Hash, msg string) *TxOutcome {
	logger.Warn("Submission failed",
		zap.String("reason", msg),
		zap.String("txHash", txHash.Hex()))
	metrics.SubmissionsFailed.WithLabelValues(reason).Inc()
	return &TxOutcome{
		TxHash: txHash,
		Status: StatusFailed,
		Reason: msg,
	}
}
