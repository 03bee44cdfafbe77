package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"payment-core/pkg/cache"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
)

// ERC-20 函数选择器
var (
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
	decimalsSelector  = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

const decimalsCacheKey = "payment:oracle:token_decimals"

// ERC20Oracle 通过 eth_call 查询代币余额
// 余额以代币最小单位返回，与账本记账单位一致
type ERC20Oracle struct {
	client *ethclient.Client
	token  common.Address
	cache  cache.Cache
}

func NewERC20Oracle(rpcURL, tokenContract string, c cache.Cache) (*ERC20Oracle, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}

	return &ERC20Oracle{
		client: client,
		token:  common.HexToAddress(tokenContract),
		cache:  c,
	}, nil
}

// TokenBalance 查询地址的代币余额 (最小单位)
func (o *ERC20Oracle) TokenBalance(ctx context.Context, addr string) (int64, error) {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(addr).Bytes(), 32)...)

	out, err := o.client.CallContract(ctx, ethereum.CallMsg{
		To:   &o.token,
		Data: data,
	}, nil)
	if err != nil {
		monitor.Business.OracleErrorsTotal.Inc()
		logger.Warn("oracle balanceOf call failed", zap.String("address", addr), zap.Error(err))
		return 0, fmt.Errorf("balanceOf %s: %w", addr, err)
	}

	bal := new(big.Int).SetBytes(out)
	if !bal.IsInt64() {
		monitor.Business.OracleErrorsTotal.Inc()
		return 0, fmt.Errorf("balanceOf %s: value %s overflows int64", addr, bal.String())
	}

	return bal.Int64(), nil
}

// Decimals 读取代币精度，结果走多级缓存 (合约精度不会变)
func (o *ERC20Oracle) Decimals(ctx context.Context) (int32, error) {
	var cached int32
	if err := o.cache.Get(ctx, decimalsCacheKey, &cached); err == nil {
		return cached, nil
	}

	out, err := o.client.CallContract(ctx, ethereum.CallMsg{
		To:   &o.token,
		Data: decimalsSelector,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals(): %w", err)
	}

	d := int32(new(big.Int).SetBytes(out).Int64())
	_ = o.cache.Set(ctx, decimalsCacheKey, d, 24*time.Hour)

	return d, nil
}
