package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// EVMClient handles interactions with an EVM-compatible chain. One instance
// per chain; the destination instance carries the signing key, the source
// instance may be read-only.
type EVMClient struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	logger     *zap.Logger

	// The account's nonce counter is single-writer, strictly ordered.
	// sendMu serializes nonce fetch, sign and send so concurrent
	// submissions against the same identity cannot race.
	sendMu sync.Mutex
}

// NewEVMClient creates a signing client for an EVM chain.
func NewEVMClient(logger *zap.Logger, rpcURL, privateKeyHex string) (*EVMClient, error) {
	client := &EVMClient{
		logger: logger.With(zap.String("component", "EVMClient")),
	}

	client.logger.Info("Connecting to EVM chain", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %v", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey := privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	client.client = ethClient
	client.privateKey = privateKey
	client.address = crypto.PubkeyToAddress(*publicKeyECDSA)

	return client, nil
}

// NewReadOnlyEVMClient creates a client without a signing key, used for
// source-chain receipt and log reads.
func NewReadOnlyEVMClient(logger *zap.Logger, rpcURL string) (*EVMClient, error) {
	client := &EVMClient{
		logger: logger.With(zap.String("component", "EVMClient")),
	}

	client.logger.Info("Connecting to EVM chain (read-only)", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %v", err)
	}

	client.client = ethClient
	return client, nil
}

// GetAddress returns the public address for this client's signing key.
func (c *EVMClient) GetAddress() common.Address {
	return c.address
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// TransactionReceipt fetches a receipt by transaction hash.
func (c *EVMClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, txHash)
}

// BalanceAt reads the relayer account's current balance, logged at startup
// so an underfunded key is visible before the first submission fails.
func (c *EVMClient) BalanceAt(ctx context.Context) (*big.Int, error) {
	return c.client.BalanceAt(ctx, c.address, nil)
}

// SuggestGasPrice returns the node's current fee estimate.
func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

// FilterLogs passes through to the underlying node.
func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.client.FilterLogs(ctx, q)
}

// SubscribeFilterLogs passes through to the underlying node. Fails on RPC
// endpoints without subscription support; callers fall back to FilterLogs
// polling.
func (c *EVMClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, q, ch)
}

// BlockNumber returns the chain head height.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// NullifierUsed reads the bridge contract's usedNullifiers predicate.
func (c *EVMClient) NullifierUsed(ctx context.Context, contract common.Address, nullifier common.Hash) (bool, error) {
	// Contract ABI for the usedNullifiers view
	const abiJSON = `[{
        "inputs": [
            {"internalType": "bytes32", "name": "nullifier", "type": "bytes32"}
        ],
        "name": "usedNullifiers",
        "outputs": [
            {"internalType": "bool", "name": "", "type": "bool"}
        ],
        "stateMutability": "view",
        "type": "function"
    }]`

	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return false, fmt.Errorf("ABI parse error: %v", err)
	}

	data, err := parsedABI.Pack("usedNullifiers", [32]byte(nullifier))
	if err != nil {
		return false, fmt.Errorf("ABI pack error: %v", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("usedNullifiers call failed: %v", err)
	}

	out, err := parsedABI.Unpack("usedNullifiers", result)
	if err != nil {
		return false, fmt.Errorf("usedNullifiers unpack error: %v", err)
	}

	used, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("usedNullifiers returned unexpected type %T", out[0])
	}
	return used, nil
}

// SendContractTransaction signs and sends a legacy transaction to the given
// contract. Nonce assignment, signing and send run under the identity's send
// mutex so transactions leave the account strictly ordered.
func (c *EVMClient) SendContractTransaction(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("client has no signing key")
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %v", err)
	}

	chainID, err := c.networkID(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %v", err)
	}

	return signedTx, nil
}

// WaitMined blocks until the transaction is included in a block. Unbounded
// except by ctx; a hung wait is recoverable by re-querying the hash later.
func (c *EVMClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.client, tx)
}

func (c *EVMClient) networkID(ctx context.Context) (*big.Int, error) {
	if c.chainID != nil {
		return c.chainID, nil
	}
	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}
	c.chainID = chainID
	return chainID, nil
}
