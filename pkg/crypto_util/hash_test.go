package crypto_util

import (
	"testing"
)

func TestHashes(t *testing.T) {
	input := []byte("hello world")

	// SHA256
	sha256Hash := CalculateSHA256(input)
	if len(sha256Hash) != 64 { // 32 bytes * 2 hex chars
		t.Errorf("SHA256 哈希长度不匹配: 得到 %d, 期望 64", len(sha256Hash))
	}
	if sha256Hash != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("SHA256 已知向量不匹配: %s", sha256Hash)
	}

	// Keccak256
	keccakHash := CalculateKeccak256(input)
	if len(keccakHash) != 64 {
		t.Errorf("Keccak256 哈希长度不匹配: 得到 %d, 期望 64", len(keccakHash))
	}
	if keccakHash != "47173285a8d7341e5e972fc677286384f802f8ef42a5ec5f03bbfa254cb01fad" {
		t.Errorf("Keccak256 已知向量不匹配: %s", keccakHash)
	}

	// Blake3
	blake3Hash := CalculateBlake3(input)
	if len(blake3Hash) != 64 {
		t.Errorf("Blake3 哈希长度不匹配: 得到 %d, 期望 64", len(blake3Hash))
	}
}
