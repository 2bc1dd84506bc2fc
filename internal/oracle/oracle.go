// Package oracle reads wallet balances from chain RPC endpoints with
// failover, fronted by a short-lived Redis cache.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/config"
	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/types"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}]`

// BalanceOracle reads the current balance of a wallet address.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, address string) (*types.WalletBalance, error)
}

// ethClient is the subset of ethclient.Client the oracle uses.
type ethClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainOracle queries RPC endpoints directly. Endpoints are tried in
// order; the first successful read wins.
type ChainOracle struct {
	clients      []ethClient
	endpoints    []string
	chainID      int64
	tokenAddress string
	tokenABI     abi.ABI
	logger       *logging.Logger
	now          func() time.Time

	// Token decimals and symbol are immutable contract properties, read
	// once on the first balance query and reused afterwards.
	metaMu        sync.Mutex
	metaLoaded    bool
	tokenDecimals int32
	tokenSymbol   string
}

// NewChainOracle dials the configured endpoints. At least the primary
// endpoint must be reachable.
func NewChainOracle(cfg config.ChainConfig, logger *logging.Logger) (*ChainOracle, error) {
	if strings.TrimSpace(cfg.RPCPrimary) == "" {
		return nil, fmt.Errorf("primary RPC endpoint is required")
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	oracle := &ChainOracle{
		chainID:      cfg.ChainID,
		tokenAddress: strings.TrimSpace(cfg.TokenAddress),
		tokenABI:     parsedABI,
		logger:       logger,
		now:          time.Now,
	}

	for _, endpoint := range []string{cfg.RPCPrimary, cfg.RPCSecondary} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		client, err := ethclient.Dial(endpoint)
		if err != nil {
			if len(oracle.clients) == 0 {
				return nil, fmt.Errorf("failed to connect to primary RPC endpoint: %w", err)
			}
			logger.WithField("endpoint", endpoint).WithError(err).Warn("Skipping unreachable secondary RPC endpoint")
			continue
		}
		oracle.clients = append(oracle.clients, client)
		oracle.endpoints = append(oracle.endpoints, endpoint)
	}

	logger.WithField("endpoints", len(oracle.clients)).Info("Balance oracle initialized")
	return oracle, nil
}

// BalanceOf reads the native balance of address, plus the configured
// token balance when a token address is set.
func (o *ChainOracle) BalanceOf(ctx context.Context, address string) (*types.WalletBalance, error) {
	if !common.IsHexAddress(address) {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidValue,
			Message: "invalid wallet address",
			Details: map[string]interface{}{"address": address},
		}
	}

	addr := common.HexToAddress(address)

	var lastErr error
	for i, client := range o.clients {
		balance, err := o.readBalance(ctx, client, addr)
		if err == nil {
			return balance, nil
		}
		lastErr = err
		o.logger.WithFields(map[string]interface{}{
			"endpoint": o.endpoints[i],
			"address":  address,
		}).WithError(err).Warn("RPC balance read failed, trying next endpoint")
	}

	return nil, &types.ServiceError{
		Code:    types.CodeUpstreamUnavailable,
		Message: "all RPC endpoints failed",
		Details: map[string]interface{}{"error": fmt.Sprintf("%v", lastErr)},
	}
}

func (o *ChainOracle) readBalance(ctx context.Context, client ethClient, addr common.Address) (*types.WalletBalance, error) {
	wei, err := client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}

	balance := &types.WalletBalance{
		Address:   addr.Hex(),
		ChainID:   o.chainID,
		Native:    decimal.NewFromBigInt(wei, -18),
		FetchedAt: o.now().UTC(),
	}

	if o.tokenAddress != "" {
		decimals, symbol, err := o.tokenMetadata(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("token metadata: %w", err)
		}
		tokenUnits, err := o.readTokenBalance(ctx, client, addr)
		if err != nil {
			return nil, fmt.Errorf("token balance: %w", err)
		}
		token := decimal.NewFromBigInt(tokenUnits, -decimals)
		balance.Token = &token
		balance.TokenAddress = o.tokenAddress
		balance.TokenSymbol = symbol
	}

	return balance, nil
}

// tokenMetadata returns the token's decimals and symbol, reading them
// from the contract on first use.
func (o *ChainOracle) tokenMetadata(ctx context.Context, client ethClient) (int32, string, error) {
	o.metaMu.Lock()
	defer o.metaMu.Unlock()
	if o.metaLoaded {
		return o.tokenDecimals, o.tokenSymbol, nil
	}

	tokenAddr := common.HexToAddress(o.tokenAddress)

	var decimals uint8
	if err := o.callToken(ctx, client, tokenAddr, "decimals", &decimals); err != nil {
		return 0, "", err
	}
	var symbol string
	if err := o.callToken(ctx, client, tokenAddr, "symbol", &symbol); err != nil {
		return 0, "", err
	}

	o.tokenDecimals = int32(decimals)
	o.tokenSymbol = symbol
	o.metaLoaded = true
	o.logger.WithFields(map[string]interface{}{
		"token":    o.tokenAddress,
		"symbol":   symbol,
		"decimals": decimals,
	}).Info("Token metadata loaded")
	return o.tokenDecimals, o.tokenSymbol, nil
}

func (o *ChainOracle) callToken(ctx context.Context, client ethClient, tokenAddr common.Address, method string, out interface{}) error {
	data, err := o.tokenABI.Pack(method)
	if err != nil {
		return err
	}
	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	values, err := o.tokenABI.Unpack(method, result)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("%s: unexpected return arity %d", method, len(values))
	}
	switch dst := out.(type) {
	case *uint8:
		v, ok := values[0].(uint8)
		if !ok {
			return fmt.Errorf("%s: unexpected return type %T", method, values[0])
		}
		*dst = v
	case *string:
		v, ok := values[0].(string)
		if !ok {
			return fmt.Errorf("%s: unexpected return type %T", method, values[0])
		}
		*dst = v
	default:
		return fmt.Errorf("%s: unsupported destination %T", method, out)
	}
	return nil
}

func (o *ChainOracle) readTokenBalance(ctx context.Context, client ethClient, owner common.Address) (*big.Int, error) {
	tokenAddr := common.HexToAddress(o.tokenAddress)

	data, err := o.tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	return new(big.Int).SetBytes(result), nil
}
