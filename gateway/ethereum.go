package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"mint-dashboard/logger"
	"mint-dashboard/mint"
	"mint-dashboard/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the node connection; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

const defaultConfirmTimeout = 10 * time.Minute

var _ mint.Gateway = (*Ethereum)(nil)

type Config struct {
	Backend  Backend
	Contract common.Address
	Key      *ecdsa.PrivateKey
	ChainID  *big.Int // optional, asked from the node when nil

	// ConfirmTimeout bounds the wait for a receipt once a transaction is
	// broadcast. The caller's context does not cut that wait short.
	ConfirmTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Key == nil {
		return errors.New("signing key is required")
	}
	if cfg.Contract == (common.Address{}) {
		return errors.New("contract address is required")
	}
	if cfg.ConfirmTimeout < 0 {
		return errors.New("confirm timeout must not be negative")
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	return nil
}

// Ethereum is the chain/wallet gateway: a bound mint contract plus the
// account that signs claims.
type Ethereum struct {
	backend        Backend
	contract       *bind.BoundContract
	key            *ecdsa.PrivateKey
	account        common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// LoadKey parses a hex private key, with or without 0x prefix.
func LoadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func NewEthereum(ctx context.Context, cfg Config) (*Ethereum, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == nil || chainID.Sign() == 0 {
		chainID, err = cfg.Backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}

	account := crypto.PubkeyToAddress(cfg.Key.PublicKey)
	logger.Logger.Info("Gateway ready",
		zap.String("contract", cfg.Contract.Hex()),
		zap.String("account", account.Hex()),
		zap.String("chain_id", chainID.String()))

	return &Ethereum{
		backend:        cfg.Backend,
		contract:       bind.NewBoundContract(cfg.Contract, parsed, cfg.Backend, cfg.Backend, cfg.Backend),
		key:            cfg.Key,
		account:        account,
		chainID:        chainID,
		confirmTimeout: cfg.ConfirmTimeout,
	}, nil
}

// Account returns the signer's address.
func (e *Ethereum) Account() common.Address {
	return e.account
}

func (e *Ethereum) GlobalRank(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGlobalRank); err != nil {
		return nil, err
	}
	return unpackUint(out)
}

func (e *Ethereum) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodBalanceOf, owner); err != nil {
		return nil, err
	}
	return unpackUint(out)
}

func (e *Ethereum) UserMints(ctx context.Context, owner common.Address) (*models.MintRecord, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodUserMints, owner); err != nil {
		return nil, err
	}
	return unpackUserMints(out)
}

func (e *Ethereum) ClaimRank(ctx context.Context, term uint64) (*models.Receipt, error) {
	return e.transact(ctx, methodClaimRank, new(big.Int).SetUint64(term))
}

func (e *Ethereum) ClaimMintReward(ctx context.Context) (*models.Receipt, error) {
	return e.transact(ctx, methodClaimMintReward)
}

// transact signs and sends the call, then blocks until it is mined. The
// caller's context governs the send only; a broadcast transaction is always
// waited for, up to the confirm timeout.
func (e *Ethereum) transact(ctx context.Context, method string, params ...interface{}) (*models.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		return nil, &SubmissionError{Method: method, Err: err}
	}
	opts.Context = ctx

	tx, err := e.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, &SubmissionError{Method: method, Err: err}
	}
	logger.Logger.Info("Transaction sent", zap.String("method", method), zap.String("tx_hash", tx.Hash().Hex()))

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, e.backend, tx)
	if err != nil {
		return nil, &UnconfirmedError{Method: method, TxHash: tx.Hash(), Err: err}
	}
	return checkReceipt(method, receipt)
}

func checkReceipt(method string, receipt *types.Receipt) (*models.Receipt, error) {
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &ConfirmationError{Method: method, TxHash: receipt.TxHash, BlockNumber: block}
	}
	return &models.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: block,
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, nil
}

func unpackUint(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 output, got %d", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func unpackUserMints(out []interface{}) (*models.MintRecord, error) {
	if len(out) != 3 {
		return nil, fmt.Errorf("expected 3 outputs, got %d", len(out))
	}
	term := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	maturityTs := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	rank := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)

	if !term.IsUint64() {
		return nil, fmt.Errorf("term %s out of range", term)
	}
	if !maturityTs.IsInt64() {
		return nil, fmt.Errorf("maturityTs %s out of range", maturityTs)
	}
	return &models.MintRecord{
		Term:       term.Uint64(),
		Rank:       new(big.Int).Set(rank),
		MaturityTs: maturityTs.Int64(),
	}, nil
}
