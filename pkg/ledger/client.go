package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/docledger/middleware/internal/metrics"
	"github.com/docledger/middleware/pkg/config"
)

// registryABI describes the document-registry contract surface the service
// drives: three state-changing methods and three read-only views.
const registryABI = `[
	{"name":"uploadDocument","type":"function","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"contentAddress","type":"string"}],"outputs":[]},
	{"name":"incrementAllowedUploads","type":"function","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"additionalUploads","type":"uint256"}],"outputs":[]},
	{"name":"deleteDocument","type":"function","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"index","type":"uint256"}],"outputs":[]},
	{"name":"getAllDocuments","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"documents","type":"tuple[]","components":[{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"contentAddress","type":"string"},{"name":"index","type":"uint256"}]}]},
	{"name":"getUploadedDocumentCount","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"count","type":"uint256"}]},
	{"name":"getAllowedUploads","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"allowed","type":"uint256"}]}
]`

// CostEstimate is the predicted cost of executing a call, required before
// submission.
type CostEstimate struct {
	GasLimit uint64
	GasPrice *big.Int
}

// FeeEther returns the estimated maximum fee denominated in ether.
func (e CostEstimate) FeeEther() decimal.Decimal {
	if e.GasPrice == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(e.GasPrice, new(big.Int).SetUint64(e.GasLimit))
	return decimal.NewFromBigInt(wei, -18)
}

// Receipt confirms inclusion of a submitted transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Client signs and submits transactions against the document registry from a
// single configured account, and serves read-only queries.
type Client struct {
	config     *config.LedgerConfig
	client     *ethclient.Client
	registry   abi.ABI
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int

	maxGasPrice *big.Int
	logger      *zap.Logger

	// Serializes pending-nonce fetch and send across concurrent pipelines
	// so in-flight submissions from this account never collide on a nonce.
	nonceMu sync.Mutex
}

// NewClient connects to the ledger RPC endpoint and loads the signing key.
func NewClient(cfg *config.LedgerConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC: %w", err)
	}

	registry, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SigningKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	var maxGasPrice *big.Int
	if cfg.MaxGasPrice != "" {
		maxGasPrice = new(big.Int)
		if _, ok := maxGasPrice.SetString(cfg.MaxGasPrice, 10); !ok {
			return nil, fmt.Errorf("invalid max gas price %q", cfg.MaxGasPrice)
		}
	}

	logger.Info("Connected to ledger",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("signing_address", address.Hex()))

	return &Client{
		config:      cfg,
		client:      client,
		registry:    registry,
		privateKey:  privateKey,
		address:     address,
		chainID:     big.NewInt(cfg.ChainID),
		maxGasPrice: maxGasPrice,
		logger:      logger,
	}, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// SigningAddress returns the process-wide account that signs and pays for
// submitted transactions.
func (c *Client) SigningAddress() common.Address {
	return c.address
}

// Estimate predicts the execution cost of a call. A failed estimation
// usually means the call would revert and is reported distinctly from
// network failures.
func (c *Client) Estimate(ctx context.Context, call Call) (CostEstimate, error) {
	data, err := c.registry.Pack(call.Method(), call.Args()...)
	if err != nil {
		return CostEstimate{}, fmt.Errorf("%w: packing %s: %v", ErrEstimationFailed, call.Method(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	to := call.Contract()
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return CostEstimate{}, classifyRPCError(err, ErrEstimationFailed)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return CostEstimate{}, classifyRPCError(err, ErrEstimationFailed)
	}
	if c.maxGasPrice != nil && gasPrice.Cmp(c.maxGasPrice) > 0 {
		c.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("suggested", gasPrice.String()),
			zap.String("max", c.maxGasPrice.String()))
		gasPrice = new(big.Int).Set(c.maxGasPrice)
	}

	return CostEstimate{GasLimit: gasLimit, GasPrice: gasPrice}, nil
}

// Submit signs and sends the call with the estimated cost, then waits for
// inclusion. A timeout while waiting leaves the transaction's final state
// unknown; callers must check ledger state before resubmitting.
func (c *Client) Submit(ctx context.Context, call Call, cost CostEstimate) (*Receipt, error) {
	data, err := c.registry.Pack(call.Method(), call.Args()...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", ErrRejected, call.Method(), err)
	}

	submissionID := uuid.New().String()
	to := call.Contract()

	signedTx, err := c.sendSerialized(ctx, &to, data, cost)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(call.Method(), "rejected").Inc()
		return nil, err
	}

	c.logger.Info("Ledger transaction submitted",
		zap.String("submission_id", submissionID),
		zap.String("method", call.Method()),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", signedTx.Nonce()))

	// An in-flight submission must be allowed to complete even if the
	// client disconnects; only the confirm timeout bounds the wait.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.ConfirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.client, signedTx)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(call.Method(), "timeout").Inc()
		return nil, classifyRPCError(err, ErrTimeout)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.LedgerTransactions.WithLabelValues(call.Method(), "reverted").Inc()
		return nil, fmt.Errorf("%w: transaction %s reverted in block %d",
			ErrRejected, signedTx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}

	metrics.LedgerTransactions.WithLabelValues(call.Method(), "confirmed").Inc()
	metrics.GasUsed.WithLabelValues(call.Method()).Observe(float64(receipt.GasUsed))

	c.logger.Info("Ledger transaction confirmed",
		zap.String("submission_id", submissionID),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("block_number", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed))

	return &Receipt{
		TxHash:      signedTx.Hash().Hex(),
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// sendSerialized fetches the pending nonce, signs and sends the transaction
// under the nonce mutex.
func (c *Client) sendSerialized(ctx context.Context, to *common.Address, data []byte, cost CostEstimate) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, classifyRPCError(err, ErrUnreachable)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: cost.GasPrice,
		Gas:      cost.GasLimit,
		To:       to,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: signing: %v", ErrRejected, err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, classifyRPCError(err, ErrRejected)
	}
	return signedTx, nil
}

// Query executes a read-only registry method and returns its first output
// value.
func (c *Client) Query(ctx context.Context, contract common.Address, method string, args ...interface{}) (interface{}, error) {
	data, err := c.registry.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", ErrRejected, method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, classifyRPCError(err, ErrRejected)
	}

	values, err := c.registry.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %v", ErrRejected, method, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// classifyRPCError maps transport failures onto the client's error kinds.
// Anything that is not a timeout or a connectivity failure keeps the
// caller-supplied kind.
func classifyRPCError(err error, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
