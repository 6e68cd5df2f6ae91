// Package repo provides the generic soft-delete repository every entity
// type is persisted through. Mutations are staged on the repository and
// committed atomically by SaveChanges in a single transaction; reads are
// scoped to non-deleted rows unless the WithDeleted variant is used.
package repo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-user-admin/internal/core/apperr"
	"go-user-admin/internal/model"
)

// entity constrains PT to a pointer to T that satisfies model.Entity.
type entity[T any] interface {
	*T
	model.Entity
}

type opKind int

const (
	opCreate opKind = iota
	opSave
	opHardDelete
	opHardDeleteIDs
)

type operation[PT any] struct {
	kind   opKind
	models []PT
	ids    []int
}

// Repository owns the write path to the store for one entity type.
// An instance is request-scoped and must not be shared across requests.
type Repository[T any, PT entity[T]] struct {
	db     *gorm.DB
	log    *zap.Logger
	staged []operation[PT]
}

func New[T any, PT entity[T]](db *gorm.DB, log *zap.Logger) *Repository[T, PT] {
	return &Repository[T, PT]{db: db, log: log}
}

// Add stages m for insertion. The id stays unset until SaveChanges commits.
func (r *Repository[T, PT]) Add(m PT) {
	m.EnsureTimestamps(time.Now().UTC())
	r.staged = append(r.staged, operation[PT]{kind: opCreate, models: []PT{m}})
}

func (r *Repository[T, PT]) AddRange(ms []PT) {
	if len(ms) == 0 {
		return
	}
	now := time.Now().UTC()
	for _, m := range ms {
		m.EnsureTimestamps(now)
	}
	r.staged = append(r.staged, operation[PT]{kind: opCreate, models: ms})
}

// Update stamps DateUpdate and stages m for update.
func (r *Repository[T, PT]) Update(m PT) {
	m.UpdateBeforeSave(time.Now().UTC())
	r.staged = append(r.staged, operation[PT]{kind: opSave, models: []PT{m}})
}

// UpdateRange stamps every entity in the batch with the same DateUpdate.
func (r *Repository[T, PT]) UpdateRange(ms []PT) {
	if len(ms) == 0 {
		return
	}
	now := time.Now().UTC()
	for _, m := range ms {
		m.UpdateBeforeSave(now)
	}
	r.staged = append(r.staged, operation[PT]{kind: opSave, models: ms})
}

// Remove soft-deletes m: flips the delete flag, stamps DateUpdate and
// stages the update.
func (r *Repository[T, PT]) Remove(m PT) {
	if m == nil {
		return
	}
	m.SetDeleted(true)
	r.Update(m)
}

// RemoveByID soft-deletes the row with the given id. A silent no-op when
// the id does not resolve to a non-deleted row; callers needing existence
// must check beforehand.
func (r *Repository[T, PT]) RemoveByID(ctx context.Context, id int) error {
	m, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	r.Remove(m)
	return nil
}

func (r *Repository[T, PT]) RemoveRange(ms []PT) {
	if len(ms) == 0 {
		return
	}
	now := time.Now().UTC()
	for _, m := range ms {
		m.SetDeleted(true)
		m.UpdateBeforeSave(now)
	}
	r.staged = append(r.staged, operation[PT]{kind: opSave, models: ms})
}

func (r *Repository[T, PT]) RemoveRangeByID(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	var list []T
	if err := r.GetListQuery(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return r.storeErr("load for remove", err)
	}
	ms := make([]PT, 0, len(list))
	for i := range list {
		ms = append(ms, PT(&list[i]))
	}
	r.RemoveRange(ms)
	return nil
}

// Delete stages hard, irreversible removal, bypassing the soft-delete flag.
func (r *Repository[T, PT]) Delete(m PT) {
	r.staged = append(r.staged, operation[PT]{kind: opHardDelete, models: []PT{m}})
}

func (r *Repository[T, PT]) DeleteRange(ms []PT) {
	if len(ms) == 0 {
		return
	}
	r.staged = append(r.staged, operation[PT]{kind: opHardDelete, models: ms})
}

func (r *Repository[T, PT]) DeleteRangeByID(ids []int) {
	if len(ids) == 0 {
		return
	}
	r.staged = append(r.staged, operation[PT]{kind: opHardDeleteIDs, ids: ids})
}

// GetListQuery returns a lazy query over non-deleted rows. Callers may
// compose Where/Preload/Order before materializing.
func (r *Repository[T, PT]) GetListQuery(ctx context.Context) *gorm.DB {
	return r.GetListQueryWithDeleted(ctx).Where("is_delete = ?", false)
}

// GetListQueryWithDeleted returns a lazy query over all rows, soft-deleted
// included.
func (r *Repository[T, PT]) GetListQueryWithDeleted(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(PT(new(T)))
}

func (r *Repository[T, PT]) GetList(ctx context.Context) ([]T, error) {
	var list []T
	if err := r.GetListQuery(ctx).Find(&list).Error; err != nil {
		return nil, r.storeErr("get list", err)
	}
	return list, nil
}

func (r *Repository[T, PT]) GetListWithDeleted(ctx context.Context) ([]T, error) {
	var list []T
	if err := r.GetListQueryWithDeleted(ctx).Find(&list).Error; err != nil {
		return nil, r.storeErr("get list with deleted", err)
	}
	return list, nil
}

// Any reports whether at least one non-deleted row matches the condition.
func (r *Repository[T, PT]) Any(ctx context.Context, query any, args ...any) (bool, error) {
	var n int64
	if err := r.GetListQuery(ctx).Where(query, args...).Count(&n).Error; err != nil {
		return false, r.storeErr("any", err)
	}
	return n > 0, nil
}

// FirstOrDefault returns the first non-deleted row matching the condition,
// or nil when there is none.
func (r *Repository[T, PT]) FirstOrDefault(ctx context.Context, query any, args ...any) (PT, error) {
	var m T
	err := r.GetListQuery(ctx).Where(query, args...).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.storeErr("first or default", err)
	}
	return PT(&m), nil
}

// Get returns the non-deleted row with the given id, or nil.
func (r *Repository[T, PT]) Get(ctx context.Context, id int) (PT, error) {
	return r.FirstOrDefault(ctx, "id = ?", id)
}

// Count returns the number of non-deleted rows.
func (r *Repository[T, PT]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.GetListQuery(ctx).Count(&n).Error; err != nil {
		return 0, r.storeErr("count", err)
	}
	return n, nil
}

// SaveChanges commits every staged operation in one transaction and
// returns the number of affected rows. Store failures are logged and
// propagated; the staged set is consumed either way.
func (r *Repository[T, PT]) SaveChanges(ctx context.Context) (int64, error) {
	staged := r.staged
	r.staged = nil
	if len(staged) == 0 {
		return 0, nil
	}

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range staged {
			var res *gorm.DB
			switch op.kind {
			case opCreate:
				res = tx.Create(op.models)
			case opSave:
				for _, m := range op.models {
					res = tx.Save(m)
					if res.Error != nil {
						return res.Error
					}
					affected += res.RowsAffected
				}
				continue
			case opHardDelete:
				for _, m := range op.models {
					res = tx.Delete(m)
					if res.Error != nil {
						return res.Error
					}
					affected += res.RowsAffected
				}
				continue
			case opHardDeleteIDs:
				res = tx.Where("id IN ?", op.ids).Delete(PT(new(T)))
			}
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		r.log.Error("save changes failed", zap.Error(err))
		return 0, apperr.Wrap(apperr.KindStore, "save changes", err)
	}
	return affected, nil
}

// Tx runs fn inside a single store transaction. Escape hatch for flows
// that mutate relations the staged operations cannot express (e.g. role
// attachment); keeps the repository as the only write path.
func (r *Repository[T, PT]) Tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := r.db.WithContext(ctx).Transaction(fn); err != nil {
		r.log.Error("transaction failed", zap.Error(err))
		return apperr.Wrap(apperr.KindStore, "transaction", err)
	}
	return nil
}

func (r *Repository[T, PT]) storeErr(msg string, err error) error {
	r.log.Error(msg, zap.Error(err))
	return apperr.Wrap(apperr.KindStore, msg, err)
}
