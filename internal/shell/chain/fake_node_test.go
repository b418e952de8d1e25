package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// Hardhat's first well-known development account.
const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// fakeNode answers the eth_* methods the client uses. It "mines" every raw
// transaction it receives immediately.
type fakeNode struct {
	mu        sync.Mutex
	chainID   *big.Int
	balance   *big.Int
	baseFee   *big.Int
	nonce     uint64
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
	revert    bool
	rejectGas error
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		chainID:  big.NewInt(1337),
		balance:  new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)),
		baseFee:  big.NewInt(1_000_000_000),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (n *fakeNode) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(n.chainID.Uint64())
}

func (n *fakeNode) GetBalance(addr common.Address, block *string) *hexutil.Big {
	return (*hexutil.Big)(n.balance)
}

func (n *fakeNode) GetTransactionCount(addr common.Address, block *string) hexutil.Uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return hexutil.Uint64(n.nonce)
}

func (n *fakeNode) EstimateGas(args map[string]any, block *string) (hexutil.Uint64, error) {
	if n.rejectGas != nil {
		return 0, n.rejectGas
	}
	return hexutil.Uint64(1_500_000), nil
}

func (n *fakeNode) GetBlockByNumber(number string, full bool) *types.Header {
	return &types.Header{
		Number:     big.NewInt(1),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		BaseFee:    n.baseFee,
	}
}

func (n *fakeNode) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_000_000_000))
}

func (n *fakeNode) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(2_000_000_000))
}

func (n *fakeNode) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return common.Hash{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if tx.Nonce() != n.nonce {
		return common.Hash{}, errors.New("nonce too low")
	}
	n.nonce++
	n.sent = append(n.sent, tx)

	status := types.ReceiptStatusSuccessful
	if n.revert {
		status = types.ReceiptStatusFailed
	}
	n.receipts[tx.Hash()] = &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: 21000,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		ContractAddress:   crypto.CreateAddress(from, tx.Nonce()),
		GasUsed:           21000,
		BlockNumber:       big.NewInt(int64(n.nonce)),
	}
	return tx.Hash(), nil
}

func (n *fakeNode) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receipts[hash]
}

func (n *fakeNode) GetCode(addr common.Address, block *string) hexutil.Bytes {
	return hexutil.Bytes{0x60, 0x80}
}

func (n *fakeNode) sentTxs() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// dialFakeNode serves node in-process and returns a connected rpc client.
func dialFakeNode(t *testing.T, node *fakeNode) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", node))
	t.Cleanup(server.Stop)

	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)

	// Sanity check the wiring before handing the client out
	var id hexutil.Uint64
	require.NoError(t, client.CallContext(context.Background(), &id, "eth_chainId"))
	return client
}
