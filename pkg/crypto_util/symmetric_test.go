package crypto_util

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestAESGCM(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef") // 32 字节用于 AES-256
	plaintext := []byte("这是一条用于 AES-GCM 测试的秘密消息")

	ciphertext, err := EncryptAESGCM(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptAESGCM 失败: %v", err)
	}

	decrypted, err := DecryptAESGCM(key, ciphertext)
	if err != nil {
		t.Fatalf("DecryptAESGCM 失败: %v", err)
	}

	if !bytes.Equal(plaintext, decrypted) {
		t.Errorf("解密后的消息与明文不匹配。\n得到: %s\n期望: %s", decrypted, plaintext)
	}
}

func TestAESGCM_InvalidKey(t *testing.T) {
	key := []byte("shortkey")
	plaintext := []byte("test")
	_, err := EncryptAESGCM(key, plaintext)
	if err == nil {
		t.Error("期望因密钥长度无效而报错，但未收到错误")
	}
}

func TestAESGCM_TamperedCiphertext(t *testing.T) {
	key := []byte("0123456789abcdef") // 16 bytes
	ciphertext, err := EncryptAESGCM(key, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("AES Ciphertext (Hex): %s", hex.EncodeToString(ciphertext))

	// 篡改最后一个字节，GCM 校验必须失败
	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := DecryptAESGCM(key, ciphertext); err == nil {
		t.Error("期望 GCM 校验失败，但解密成功了")
	}
}
