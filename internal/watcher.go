package internal

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/veilbridge/relayer/internal/submitter"
)

// LogSource is the source-chain surface the watcher needs. The EVM client
// implements it.
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// MessageRelayer relays the message carried by one source transaction. The
// orchestrator implements it.
type MessageRelayer interface {
	Relay(ctx context.Context, sourceTxHash common.Hash) (*submitter.TxOutcome, error)
}

// Watcher listens for message-emission events on the source chain and relays
// each one. Relays run in tracked goroutines; shutdown waits for in-flight
// relays to finish.
type Watcher struct {
	emitter      common.Address
	topic        common.Hash
	pollInterval time.Duration
	source       LogSource
	relayer      MessageRelayer
	logger       *zap.Logger
}

func NewWatcher(logger *zap.Logger, emitter common.Address, source LogSource, relayer MessageRelayer) *Watcher {
	return &Watcher{
		emitter:      emitter,
		topic:        MessageSentTopic,
		pollInterval: 15 * time.Second,
		source:       source,
		relayer:      relayer,
		logger:       logger.With(zap.String("component", "Watcher")),
	}
}

// Start begins watching for emitted messages and blocks until ctx is
// cancelled. It prefers a log subscription and falls back to polling when the
// RPC endpoint does not support subscriptions.
func (w *Watcher) Start(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.emitter},
		Topics:    [][]common.Hash{{w.topic}},
	}

	var wg sync.WaitGroup
	defer func() {
		w.logger.Info("Waiting for in-flight relays to complete")
		wg.Wait()
		w.logger.Info("Shutdown complete")
	}()

	logs := make(chan types.Log, 64)
	sub, err := w.source.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		w.logger.Warn("Log subscription unavailable, falling back to polling", zap.Error(err))
		return w.pollLoop(ctx, query, &wg)
	}
	defer sub.Unsubscribe()

	w.logger.Info("Listening for emitted messages",
		zap.String("emitter", w.emitter.Hex()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down watcher")
			return nil
		case err := <-sub.Err():
			w.logger.Warn("Subscription error, falling back to polling", zap.Error(err))
			return w.pollLoop(ctx, query, &wg)
		case log := <-logs:
			w.dispatch(ctx, &wg, log)
		}
	}
}

// pollLoop scans new blocks for emitter logs on a fixed cadence.
func (w *Watcher) pollLoop(ctx context.Context, query ethereum.FilterQuery, wg *sync.WaitGroup) error {
	head, err := w.source.BlockNumber(ctx)
	if err != nil {
		return err
	}
	next := head + 1

	w.logger.Info("Polling for emitted messages",
		zap.String("emitter", w.emitter.Hex()),
		zap.Uint64("fromBlock", next),
		zap.Duration("interval", w.pollInterval))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down watcher")
			return nil
		case <-ticker.C:
			head, err := w.source.BlockNumber(ctx)
			if err != nil {
				w.logger.Warn("Head lookup failed, retrying next tick", zap.Error(err))
				continue
			}
			if head < next {
				continue
			}

			q := query
			q.FromBlock = new(big.Int).SetUint64(next)
			q.ToBlock = new(big.Int).SetUint64(head)

			found, err := w.source.FilterLogs(ctx, q)
			if err != nil {
				w.logger.Warn("Log scan failed, retrying next tick", zap.Error(err))
				continue
			}
			for _, log := range found {
				w.dispatch(ctx, wg, log)
			}
			next = head + 1
		}
	}
}

// dispatch relays the source transaction behind a log in its own goroutine.
// Distinct transactions are independent; nonce ordering on the destination is
// handled by the EVM client's send mutex.
func (w *Watcher) dispatch(ctx context.Context, wg *sync.WaitGroup, log types.Log) {
	w.logger.Info("Message event observed",
		zap.String("sourceTx", log.TxHash.Hex()),
		zap.Uint64("block", log.BlockNumber))

	wg.Add(1)
	go func(txHash common.Hash) {
		defer wg.Done()
		if _, err := w.relayer.Relay(ctx, txHash); err != nil {
			w.logger.Error("Relay failed", zap.String("sourceTx", txHash.Hex()), zap.Error(err))
		}
	}(log.TxHash)
}
