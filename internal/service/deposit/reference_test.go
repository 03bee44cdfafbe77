package deposit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReference(t *testing.T) {
	ref := newReference(42, "0xabc", 10000)
	assert.Len(t, ref, 64)

	// 同参数再生成也不能撞号 (带时间和随机数)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := newReference(42, "0xabc", 10000)
		assert.False(t, seen[r], "reference collision")
		seen[r] = true
	}
}
