package prober

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

var errUnexpectedOutput = errors.New("unexpected contract output")

// Prober reads ownership and balances of token IDs for an account
type Prober interface {
	// Probe returns one holding per token ID, in input order.
	// A failed lookup yields a not-owned, zero balance slot carrying the error.
	// Unsupported contract types and missing inputs return no holdings.
	Probe(ctx context.Context, contract, account *common.Address, tokenIDs []*big.Int, contractType domain.ContractType) []domain.Holding

	// ERC721Balance returns the number of ERC721 tokens the account holds in the contract
	ERC721Balance(ctx context.Context, contract, account common.Address) (*big.Int, error)

	// Close stops the worker pool
	Close()
}

type prober struct {
	client ethereum.EthereumClient
	pool   pond.ResultPool[domain.Holding]
}

// Config sizes the lookup worker pool
type Config struct {
	PoolSize  int
	QueueSize int
}

// New creates a prober that fans lookups out over a bounded worker pool
func New(client ethereum.EthereumClient, cfg Config) Prober {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	var opts []pond.Option
	if cfg.QueueSize > 0 {
		opts = append(opts, pond.WithQueueSize(cfg.QueueSize))
	}
	return &prober{
		client: client,
		pool:   pond.NewResultPool[domain.Holding](cfg.PoolSize, opts...),
	}
}

func (p *prober) Probe(ctx context.Context, contract, account *common.Address, tokenIDs []*big.Int, contractType domain.ContractType) []domain.Holding {
	if contract == nil || account == nil || len(tokenIDs) == 0 || !contractType.IsTransferable() {
		return []domain.Holding{}
	}

	group := p.pool.NewGroup()
	for _, tokenID := range tokenIDs {
		group.Submit(func() domain.Holding {
			if contractType == domain.ContractTypeERC721 {
				return p.probeERC721(ctx, *contract, *account, tokenID)
			}
			return p.probeERC1155(ctx, *contract, *account, tokenID)
		})
	}

	holdings, err := group.Wait()
	if err != nil {
		// only a panicking task gets here; degrade every slot rather than drop positions
		logger.ErrorCtx(ctx, fmt.Errorf("probe tasks failed: %w", err), zap.String("contract", contract.Hex()))
		holdings = make([]domain.Holding, len(tokenIDs))
		for i, tokenID := range tokenIDs {
			holdings[i] = emptyHolding(tokenID, err)
		}
	}

	return holdings
}

func (p *prober) probeERC721(ctx context.Context, contract, account common.Address, tokenID *big.Int) domain.Holding {
	out, err := p.client.ReadContract(ctx, contract, ethereum.SigOwnerOf, []interface{}{tokenID})
	if err != nil {
		logger.DebugCtx(ctx, "ownerOf lookup failed", zap.String("tokenID", tokenID.String()), zap.Error(err))
		return emptyHolding(tokenID, err)
	}
	if len(out) != 1 {
		return emptyHolding(tokenID, errUnexpectedOutput)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return emptyHolding(tokenID, errUnexpectedOutput)
	}

	holding := domain.Holding{
		TokenID: tokenID,
		Owner:   &owner,
		IsOwner: domain.SameAddress(owner.Hex(), account.Hex()),
		Balance: big.NewInt(0),
	}
	if holding.IsOwner {
		holding.Balance = big.NewInt(1)
	}
	return holding
}

func (p *prober) probeERC1155(ctx context.Context, contract, account common.Address, tokenID *big.Int) domain.Holding {
	balance, err := p.readUint(ctx, contract, ethereum.SigERC1155BalanceOf, []interface{}{account, tokenID})
	if err != nil {
		logger.DebugCtx(ctx, "balanceOf lookup failed", zap.String("tokenID", tokenID.String()), zap.Error(err))
		return emptyHolding(tokenID, err)
	}

	return domain.Holding{
		TokenID: tokenID,
		Balance: balance,
		IsOwner: balance.Sign() > 0,
	}
}

func (p *prober) ERC721Balance(ctx context.Context, contract, account common.Address) (*big.Int, error) {
	balance, err := p.readUint(ctx, contract, ethereum.SigERC721BalanceOf, []interface{}{account})
	if err != nil {
		return nil, fmt.Errorf("failed to read ERC721 balance: %w", err)
	}
	return balance, nil
}

func (p *prober) readUint(ctx context.Context, contract common.Address, signature string, args []interface{}) (*big.Int, error) {
	out, err := p.client.ReadContract(ctx, contract, signature, args)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errUnexpectedOutput
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, errUnexpectedOutput
	}
	return value, nil
}

func (p *prober) Close() {
	p.pool.StopAndWait()
}

func emptyHolding(tokenID *big.Int, err error) domain.Holding {
	return domain.Holding{
		TokenID: tokenID,
		Balance: big.NewInt(0),
		IsOwner: false,
		Err:     err,
	}
}
