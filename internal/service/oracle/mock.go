package oracle

import (
	"context"
	"sync"
)

// Mock 测试用的可编程余额源
type Mock struct {
	mu       sync.Mutex
	balances map[string]int64
	errs     map[string]error
	calls    int
}

func NewMock() *Mock {
	return &Mock{
		balances: make(map[string]int64),
		errs:     make(map[string]error),
	}
}

// SetBalance 设置某地址的余额
func (m *Mock) SetBalance(addr string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = balance
}

// SetError 让某地址的查询固定返回错误
func (m *Mock) SetError(addr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[addr] = err
}

// Calls 返回累计查询次数
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) TokenBalance(_ context.Context, addr string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[addr]; err != nil {
		return 0, err
	}
	return m.balances[addr], nil
}
