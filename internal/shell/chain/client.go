// Package chain deploys compiled contracts to an EVM network over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/spf13/afero"
)

// =============================================================================
// Client
// =============================================================================

// Config holds what the client needs to sign and submit deployments.
type Config struct {
	RPCURL       string
	PrivateKey   string
	ArtifactsDir string
	Fs           afero.Fs
	Logger       *slog.Logger
}

// Client signs contract creation transactions with a local key and waits for
// them to be mined. One RPC connection is shared by the ethclient used for
// transactions and the w3 client used for batched reads.
type Client struct {
	rpc       *rpc.Client
	eth       *ethclient.Client
	w3        *w3.Client
	key       *ecdsa.PrivateKey
	address   common.Address
	chainID   *big.Int
	artifacts *ArtifactStore
	logger    *slog.Logger
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: rpc url is required", domain.ErrConnectivity)
	}
	rc, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrConnectivity, cfg.RPCURL, err)
	}
	c, err := NewClient(rc, cfg)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rc *rpc.Client, cfg Config) (*Client, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		rpc:       rc,
		eth:       ethclient.NewClient(rc),
		w3:        w3.NewClient(rc),
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		artifacts: NewArtifactStore(cfg.Fs, cfg.ArtifactsDir),
		logger:    cfg.Logger,
	}, nil
}

// ParsePrivateKey decodes a hex secp256k1 key, with or without 0x.
func ParsePrivateKey(v string) (*ecdsa.PrivateKey, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if v == "" {
		return nil, errors.New("signer private key is required")
	}
	key, err := crypto.HexToECDSA(v)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Address returns the signing account.
func (c *Client) Address() common.Address {
	return c.address
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// =============================================================================
// Network Snapshot
// =============================================================================

// Snapshot reads the chain id and the signer balance in one batch.
func (c *Client) Snapshot(ctx context.Context) (domain.NetworkSnapshot, error) {
	var (
		chainID uint64
		balance *big.Int
	)
	if err := c.w3.CallCtx(ctx,
		eth.ChainID().Returns(&chainID),
		eth.Balance(c.address, nil).Returns(&balance),
	); err != nil {
		return domain.NetworkSnapshot{}, fmt.Errorf("%w: read chain id and balance: %v", domain.ErrConnectivity, err)
	}

	c.chainID = new(big.Int).SetUint64(chainID)
	return domain.NetworkSnapshot{
		ChainID: int64(chainID),
		Deployer: domain.DeployerIdentity{
			Address: c.address,
			Balance: balance,
		},
	}, nil
}

// =============================================================================
// Contract Deployment
// =============================================================================

// DeployContract creates the named contract with the given constructor
// arguments and blocks until the creation transaction is mined.
func (c *Client) DeployContract(ctx context.Context, artifact string, args ...any) (domain.Receipt, error) {
	art, err := c.artifacts.Load(artifact)
	if err != nil {
		return domain.Receipt{}, err
	}

	ctorArgs, err := art.ABI.Pack("", args...)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: constructor arguments for %s: %v", domain.ErrInvalidPlan, artifact, err)
	}
	data := append(append([]byte{}, art.Bytecode...), ctorArgs...)

	if c.chainID == nil {
		id, err := c.eth.ChainID(ctx)
		if err != nil {
			return domain.Receipt{}, classify("read chain id", err)
		}
		c.chainID = id
	}

	tx, err := c.buildTx(ctx, data)
	if err != nil {
		return domain.Receipt{}, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return domain.Receipt{}, classify("send tx", err)
	}

	c.logger.Debug("creation transaction sent",
		"contract", artifact,
		"tx", signed.Hash().Hex(),
		"nonce", signed.Nonce(),
		"gas", signed.Gas(),
	)

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: wait for %s: %v", domain.ErrConnectivity, signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Receipt{}, fmt.Errorf("%w: creation of %s reverted in %s", domain.ErrTransaction, artifact, signed.Hash().Hex())
	}

	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		addr = crypto.CreateAddress(c.address, signed.Nonce())
	}
	return domain.Receipt{Address: addr, TxHash: signed.Hash()}, nil
}

// buildTx prices a creation transaction. EIP-1559 when the head block has a
// base fee, legacy otherwise.
func (c *Client) buildTx(ctx context.Context, data []byte) (*types.Transaction, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, classify("get nonce", err)
	}

	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.address, Data: data})
	if err != nil {
		return nil, classify("estimate gas", err)
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, classify("read head", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, classify("suggest gas price", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			Data:     data,
		}), nil
	}

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, classify("suggest tip", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		Data:      data,
	}), nil
}

// classify maps an RPC failure onto the error taxonomy. Errors answered by
// the node are transaction errors; everything else never reached it.
func classify(op string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransaction, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConnectivity, op, err)
}
