package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-nft-transfer/internal/adapter"
	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/wallet"
)

var (
	// ErrUnknownFunction is returned for a function signature outside the NFT ABI
	ErrUnknownFunction = errors.New("unknown function signature")

	// ErrNoSigner is returned when a transaction is submitted by a read-only client
	ErrNoSigner = errors.New("no wallet configured for signing")
)

const (
	// gasLimitBufferPercent is added on top of the estimated gas
	gasLimitBufferPercent = 20

	// maxReceiptErrors is the number of consecutive receipt lookup failures tolerated while confirming
	maxReceiptErrors = 5
)

// ConfirmationConfig tunes receipt polling
type ConfirmationConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// EthereumClient is the contract-call boundary used by detection, probing and transfers
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	// Chain returns the CAIP-2 chain the client is bound to
	Chain() domain.Chain

	// Sender returns the signing account, or the zero address for a read-only client
	Sender() common.Address

	// ReadContract performs a read-only call and returns the decoded outputs
	ReadContract(ctx context.Context, contractAddress common.Address, functionSignature string, args []interface{}) ([]interface{}, error)

	// SubmitTransaction builds, signs and broadcasts a state-changing call.
	// It returns once the transaction hash is known.
	SubmitTransaction(ctx context.Context, contractAddress common.Address, functionSignature string, args []interface{}) (common.Hash, error)

	// AwaitConfirmation waits until the transaction is mined.
	// A mined transaction with a failed status returns domain.ErrTransactionReverted.
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// Close closes the connection
	Close()
}

// ClientOption configures an ethereum client
type ClientOption func(*ethereumClient)

// WithRateLimit caps contract reads and receipt polls at rps requests per second.
// Submissions are never throttled.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *ethereumClient) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type ethereumClient struct {
	chainID      domain.Chain
	client       adapter.EthClient
	signer       wallet.Signer
	clock        adapter.Clock
	confirmation ConfirmationConfig
	limiter      *rate.Limiter // nil when unlimited

	// submitMu serializes nonce assignment across submissions
	submitMu  sync.Mutex
	nextNonce map[common.Address]uint64
}

// NewClient creates an ethereum client. signer may be nil for a read-only client.
func NewClient(chainID domain.Chain, client adapter.EthClient, signer wallet.Signer, clock adapter.Clock, confirmation ConfirmationConfig, opts ...ClientOption) EthereumClient {
	if confirmation.InitialInterval <= 0 {
		confirmation.InitialInterval = 2 * time.Second
	}
	if confirmation.MaxInterval <= 0 {
		confirmation.MaxInterval = 15 * time.Second
	}

	c := &ethereumClient{
		chainID:      chainID,
		client:       client,
		signer:       signer,
		clock:        clock,
		confirmation: confirmation,
		nextNonce:    make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// throttle blocks until the rate limiter admits one more request
func (c *ethereumClient) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *ethereumClient) Chain() domain.Chain {
	return c.chainID
}

func (c *ethereumClient) Sender() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// ReadContract performs a read-only call and returns the decoded outputs
func (c *ethereumClient) ReadContract(ctx context.Context, contractAddress common.Address, functionSignature string, args []interface{}) ([]interface{}, error) {
	data, method, err := packCall(functionSignature, args)
	if err != nil {
		return nil, err
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}

	outputs, err := method.Outputs.Unpack(result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	return outputs, nil
}

// SubmitTransaction builds, signs and broadcasts a state-changing call
func (c *ethereumClient) SubmitTransaction(ctx context.Context, contractAddress common.Address, functionSignature string, args []interface{}) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrNoSigner
	}

	data, method, err := packCall(functionSignature, args)
	if err != nil {
		return common.Hash{}, err
	}

	evmChainID, err := c.chainID.EVMChainID()
	if err != nil {
		return common.Hash{}, err
	}

	from := c.signer.Address()

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	nonce, err := c.nonceFor(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &contractAddress,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas * gasLimitBufferPercent / 100

	tx, err := c.buildTx(ctx, evmChainID, nonce, gas, contractAddress, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := c.signer.SignTx(ctx, tx, evmChainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.nextNonce[from] = nonce + 1

	logger.InfoCtx(ctx, "Transaction submitted",
		zap.String("chain", string(c.chainID)),
		zap.String("method", method.Sig),
		zap.String("contract", contractAddress.Hex()),
		zap.String("txHash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)

	return signed.Hash(), nil
}

// nonceFor returns the next nonce, covering transactions sent by this client
// that the node does not report as pending yet
func (c *ethereumClient) nonceFor(ctx context.Context, from common.Address) (uint64, error) {
	pending, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	if next, ok := c.nextNonce[from]; ok && next > pending {
		return next, nil
	}
	return pending, nil
}

// buildTx builds an EIP-1559 transaction, or a legacy one on chains without a base fee
func (c *ethereumClient) buildTx(ctx context.Context, chainID *big.Int, nonce, gas uint64, to common.Address, data []byte) (*types.Transaction, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	if header.BaseFee == nil {
		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		}), nil
	}

	tip, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	}), nil
}

// AwaitConfirmation polls for the receipt until the transaction is mined or ctx is done
func (c *ethereumClient) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	start := c.clock.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.confirmation.InitialInterval
	b.MaxInterval = c.confirmation.MaxInterval
	b.MaxElapsedTime = 0 // wait until mined or cancelled

	var receiptErrors int
	operation := func() (*types.Receipt, error) {
		if err := c.throttle(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			receiptErrors = 0
			return nil, err
		}

		receiptErrors++
		if receiptErrors >= maxReceiptErrors {
			return nil, backoff.Permanent(fmt.Errorf("failed to get transaction receipt: %w", err))
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		if errors.Is(err, ethereum.NotFound) {
			return
		}
		logger.WarnCtx(ctx, "Receipt lookup failed, retrying",
			zap.String("txHash", txHash.Hex()),
			zap.Error(err),
			zap.Duration("next_retry_in", next),
		)
	}

	receipt, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.WarnCtx(ctx, "Transaction reverted",
			zap.String("txHash", txHash.Hex()),
			zap.Stringer("block", receipt.BlockNumber),
		)
		return receipt, fmt.Errorf("%w: %s", domain.ErrTransactionReverted, txHash.Hex())
	}

	logger.DebugCtx(ctx, "Transaction confirmed",
		zap.String("txHash", txHash.Hex()),
		zap.Duration("elapsed", c.clock.Since(start)),
	)

	return receipt, nil
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
