package address

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 私钥 k=1 的公钥就是 secp256k1 的生成元 G，对应地址是公开的已知值
func TestPubKeyToAddressKnownVector(t *testing.T) {
	pubKeyHex := "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	pubKey, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)

	addr, err := NewETHGenerator().PubKeyToAddress(pubKey)
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", addr)
}

// EIP-55 参考实现中的官方测试向量
func TestToChecksumAddress(t *testing.T) {
	tests := []string{
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"dbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"D1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}

	for _, want := range tests {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, toChecksumAddress(want))
		})
	}
}
