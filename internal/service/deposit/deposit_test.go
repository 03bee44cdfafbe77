package deposit

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// 并发建单时第二个插入会撞上 idx_deposits_user_pending，
// 必须被识别为唯一冲突并映射成 pending-exists，而不是落进数据库错误
func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"pg 唯一约束冲突",
			&pgconn.PgError{Code: "23505", ConstraintName: "idx_deposits_user_pending"},
			true,
		},
		{
			"包装后的 pg 冲突",
			fmt.Errorf("create deposit: %w", &pgconn.PgError{Code: "23505"}),
			true,
		},
		{"gorm 冲突哨兵", gorm.ErrDuplicatedKey, true},
		{"其他 pg 错误", &pgconn.PgError{Code: "40001"}, false},
		{"普通错误", fmt.Errorf("connection refused"), false},
		{"记录不存在", gorm.ErrRecordNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
