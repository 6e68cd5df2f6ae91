package repo

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// rawSource is satisfied by every Repository instantiation.
type rawSource interface {
	rawDB(ctx context.Context) *gorm.DB
	warnUnbound(sql string)
}

func (r *Repository[T, PT]) rawDB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *Repository[T, PT]) warnUnbound(sql string) {
	r.log.Warn("raw query executed without bound parameters; pass args to prevent SQL injection",
		zap.String("sql", sql))
}

// RawQuery runs a hand-written parameterized query and scans the rows into
// R. Interpolating user input into sql instead of passing args is a usage
// hazard and is flagged with a warning.
func RawQuery[R any](ctx context.Context, src rawSource, sql string, args ...any) ([]R, error) {
	if len(args) == 0 {
		src.warnUnbound(sql)
	}
	var out []R
	if err := src.rawDB(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// RawQuerySingle is RawQuery for a single row; returns the zero value of R
// when no row matches.
func RawQuerySingle[R any](ctx context.Context, src rawSource, sql string, args ...any) (R, error) {
	if len(args) == 0 {
		src.warnUnbound(sql)
	}
	var out R
	err := src.rawDB(ctx).Raw(sql, args...).Scan(&out).Error
	return out, err
}
