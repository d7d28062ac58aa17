package prober_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/logger"
	"github.com/feral-file/ff-nft-transfer/internal/mocks"
	"github.com/feral-file/ff-nft-transfer/internal/prober"
	"github.com/feral-file/ff-nft-transfer/internal/providers/ethereum"
)

var (
	contract = common.HexToAddress("0x6666666666666666666666666666666666666666")
	account  = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	stranger = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testProberMocks struct {
	ctrl   *gomock.Controller
	client *mocks.MockEthereumClient
	prober prober.Prober
}

func setupTestProber(t *testing.T) *testProberMocks {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockEthereumClient(ctrl)
	return &testProberMocks{
		ctrl:   ctrl,
		client: client,
		prober: prober.New(client, prober.Config{PoolSize: 4, QueueSize: 16}),
	}
}

func (m *testProberMocks) tearDown() {
	m.prober.Close()
	m.ctrl.Finish()
}

func ids(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestProbe_ERC721(t *testing.T) {
	m := setupTestProber(t)
	defer m.tearDown()

	// lowercase owner must still match the checksummed account
	lowerOwner := common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigOwnerOf, []interface{}{big.NewInt(1)}).
		Return([]interface{}{lowerOwner}, nil)
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigOwnerOf, []interface{}{big.NewInt(2)}).
		Return([]interface{}{stranger}, nil)
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigOwnerOf, []interface{}{big.NewInt(3)}).
		Return(nil, errors.New("execution reverted: ERC721: invalid token ID"))

	holdings := m.prober.Probe(context.Background(), &contract, &account, ids(1, 2, 3), domain.ContractTypeERC721)
	require.Len(t, holdings, 3)

	assert.Equal(t, int64(1), holdings[0].TokenID.Int64())
	assert.True(t, holdings[0].IsOwner)
	assert.Equal(t, int64(1), holdings[0].Balance.Int64())
	require.NotNil(t, holdings[0].Owner)
	assert.Equal(t, lowerOwner, *holdings[0].Owner)

	assert.Equal(t, int64(2), holdings[1].TokenID.Int64())
	assert.False(t, holdings[1].IsOwner)
	assert.Equal(t, int64(0), holdings[1].Balance.Int64())
	require.NotNil(t, holdings[1].Owner)
	assert.Equal(t, stranger, *holdings[1].Owner)

	assert.Equal(t, int64(3), holdings[2].TokenID.Int64())
	assert.False(t, holdings[2].IsOwner)
	assert.Equal(t, int64(0), holdings[2].Balance.Int64())
	assert.Nil(t, holdings[2].Owner)
	assert.Error(t, holdings[2].Err)
}

func TestProbe_ERC1155(t *testing.T) {
	m := setupTestProber(t)
	defer m.tearDown()

	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC1155BalanceOf, []interface{}{account, big.NewInt(10)}).
		Return([]interface{}{big.NewInt(5)}, nil)
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC1155BalanceOf, []interface{}{account, big.NewInt(11)}).
		Return([]interface{}{big.NewInt(0)}, nil)
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC1155BalanceOf, []interface{}{account, big.NewInt(12)}).
		Return(nil, errors.New("connection reset"))

	holdings := m.prober.Probe(context.Background(), &contract, &account, ids(10, 11, 12), domain.ContractTypeERC1155)
	require.Len(t, holdings, 3)

	assert.True(t, holdings[0].IsOwner)
	assert.Equal(t, int64(5), holdings[0].Balance.Int64())
	assert.Nil(t, holdings[0].Owner)

	assert.False(t, holdings[1].IsOwner)
	assert.Equal(t, int64(0), holdings[1].Balance.Int64())
	assert.NoError(t, holdings[1].Err)

	assert.False(t, holdings[2].IsOwner)
	assert.Equal(t, int64(0), holdings[2].Balance.Int64())
	assert.Error(t, holdings[2].Err)
}

func TestProbe_NoQuery(t *testing.T) {
	m := setupTestProber(t)
	defer m.tearDown()

	ctx := context.Background()
	assert.Empty(t, m.prober.Probe(ctx, &contract, &account, ids(1), domain.ContractTypeUnknown))
	assert.Empty(t, m.prober.Probe(ctx, &contract, &account, ids(1), domain.ContractTypeLoading))
	assert.Empty(t, m.prober.Probe(ctx, nil, &account, ids(1), domain.ContractTypeERC721))
	assert.Empty(t, m.prober.Probe(ctx, &contract, nil, ids(1), domain.ContractTypeERC721))
	assert.Empty(t, m.prober.Probe(ctx, &contract, &account, nil, domain.ContractTypeERC1155))
}

func TestProbe_PreservesOrder(t *testing.T) {
	m := setupTestProber(t)
	defer m.tearDown()

	tokens := ids(9, 8, 7, 6, 5, 4, 3, 2, 1)
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC1155BalanceOf, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ common.Address, _ string, args []interface{}) ([]interface{}, error) {
			return []interface{}{new(big.Int).Set(args[1].(*big.Int))}, nil
		}).Times(len(tokens))

	holdings := m.prober.Probe(context.Background(), &contract, &account, tokens, domain.ContractTypeERC1155)
	require.Len(t, holdings, len(tokens))
	for i, h := range holdings {
		assert.Equal(t, tokens[i].Int64(), h.TokenID.Int64())
		assert.Equal(t, tokens[i].Int64(), h.Balance.Int64())
	}
}

func TestERC721Balance(t *testing.T) {
	m := setupTestProber(t)
	defer m.tearDown()

	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC721BalanceOf, []interface{}{account}).
		Return([]interface{}{big.NewInt(3)}, nil)

	balance, err := m.prober.ERC721Balance(context.Background(), contract, account)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Int64())

	rpcErr := errors.New("boom")
	m.client.EXPECT().ReadContract(gomock.Any(), contract, ethereum.SigERC721BalanceOf, []interface{}{account}).
		Return(nil, rpcErr)

	_, err = m.prober.ERC721Balance(context.Background(), contract, account)
	assert.True(t, errors.Is(err, rpcErr))
}
