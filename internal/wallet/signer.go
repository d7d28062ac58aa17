package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/feral-file/ff-nft-transfer/internal/logger"
)

var (
	// ErrRejected is returned when the user declines to sign a transaction
	ErrRejected = errors.New("user rejected the signature request")

	// ErrInvalidPrivateKey is returned when the private key cannot be parsed
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Approver decides whether a transaction may be signed.
// It may block until the user answers.
type Approver func(ctx context.Context, from common.Address, tx *types.Transaction) (bool, error)

// AutoApprove approves every signature request
func AutoApprove(context.Context, common.Address, *types.Transaction) (bool, error) {
	return true, nil
}

// Signer is the wallet boundary used to sign outgoing transactions
//
//go:generate mockgen -source=signer.go -destination=../mocks/signer.go -package=mocks -mock_names=Signer=MockSigner
type Signer interface {
	// Address returns the account the signer signs for
	Address() common.Address

	// SignTx asks for approval and signs the transaction for the given chain.
	// A declined approval returns ErrRejected.
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type keySigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	approver Approver
}

// NewKeySigner creates a signer backed by a hex encoded private key
func NewKeySigner(privateKeyHex string, approver Approver) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if approver == nil {
		approver = AutoApprove
	}

	return &keySigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		approver: approver,
	}, nil
}

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	approved, err := s.approver(ctx, s.address, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature approval: %w", err)
	}
	if !approved {
		logger.DebugCtx(ctx, "Signature request rejected",
			zap.String("from", s.address.Hex()),
			zap.Uint64("nonce", tx.Nonce()),
		)
		return nil, ErrRejected
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signed, nil
}
