package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/adapter"
	"github.com/feral-file/ff-nft-transfer/internal/config"
	"github.com/feral-file/ff-nft-transfer/internal/detector"
	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/prober"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
	"github.com/feral-file/ff-nft-transfer/internal/wallet"
)

const flushTimeout = 2 * time.Second

// app holds the services a command runs against
type app struct {
	cfg      *config.TransferConfig
	console  *console
	clock    adapter.Clock
	chain    domain.Chain
	eth      adapter.EthClient
	client   ethereum.EthereumClient
	detector detector.Detector
}

// newApp loads the configuration, connects to the RPC node and, when requireWallet is set, loads the signing wallet
func newApp(ctx context.Context, flags *globalFlags, c *console, requireWallet bool) (*app, error) {
	cfg, err := config.LoadTransferConfig(flags.configFile, flags.envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(requireWallet); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags:      map[string]string{"service": "nft-transfer"},
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	eth, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial Ethereum RPC: %w", err)
	}

	chain, err := resolveChain(ctx, eth, cfg.Ethereum.ChainID)
	if err != nil {
		eth.Close()
		return nil, err
	}
	logger.InfoCtx(ctx, "Connected to Ethereum RPC", zap.String("chain", string(chain)))

	var signer wallet.Signer
	if cfg.Wallet.PrivateKey != "" {
		approver := c.Approver(chain)
		if flags.autoApprove || cfg.Wallet.AutoApprove {
			approver = wallet.AutoApprove
		}
		signer, err = wallet.NewKeySigner(cfg.Wallet.PrivateKey, approver)
		if err != nil {
			eth.Close()
			return nil, err
		}
	}

	clock := adapter.NewClock()
	client := ethereum.NewClient(chain, eth, signer, clock, ethereum.ConfirmationConfig{
		InitialInterval: cfg.Confirmation.InitialInterval,
		MaxInterval:     cfg.Confirmation.MaxInterval,
	}, ethereum.WithRateLimit(cfg.Ethereum.RateLimit, cfg.Ethereum.RateBurst))

	return &app{
		cfg:     cfg,
		console: c,
		clock:   clock,
		chain:   chain,
		eth:     eth,
		client:  client,
		detector: detector.New(client, detector.Config{
			CacheSizeMB: cfg.Detector.CacheSize,
			CacheTTL:    cfg.Detector.CacheTTL,
		}),
	}, nil
}

// resolveChain returns the configured chain after checking it against the node, or the node's chain when none is configured
func resolveChain(ctx context.Context, eth adapter.EthClient, configured domain.Chain) (domain.Chain, error) {
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain ID: %w", err)
	}

	actual := domain.ChainFromID(chainID)
	if configured != "" && configured != actual {
		return "", fmt.Errorf("configured chain %s does not match RPC chain %s", configured, actual)
	}
	return actual, nil
}

func (a *app) newProber() prober.Prober {
	return prober.New(a.client, prober.Config{
		PoolSize:  a.cfg.Worker.WorkerPoolSize,
		QueueSize: a.cfg.Worker.WorkerQueueSize,
	})
}

// detect classifies the contract and fails when it is neither ERC721 nor ERC1155
func (a *app) detect(ctx context.Context, contract common.Address) (domain.ContractType, error) {
	result := a.detector.Detect(ctx, &contract)
	if result.Err != nil {
		return result.Type, fmt.Errorf("failed to detect contract type: %w", result.Err)
	}
	if !result.Type.IsTransferable() {
		return result.Type, fmt.Errorf("%w: %s", domain.ErrUnsupportedContract, contract.Hex())
	}
	return result.Type, nil
}

func (a *app) Close() {
	a.client.Close()
	logger.Sync(flushTimeout)
}
