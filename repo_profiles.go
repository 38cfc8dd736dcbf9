package accounts

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ProfileRepository implements ProfileStore on top of bun. It works against
// sqlite and postgres.
type ProfileRepository struct {
	db  bun.IDB
	now func() time.Time
}

var _ ProfileStore = (*ProfileRepository)(nil)

// NewProfileRepository returns a ProfileStore backed by db.
func NewProfileRepository(db bun.IDB) *ProfileRepository {
	return &ProfileRepository{
		db:  db,
		now: time.Now,
	}
}

// FindByID implements ProfileStore.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	profile := &Profile{}
	err := r.db.NewSelect().
		Model(profile).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapProfileError(err, id)
	}
	return profile, nil
}

// Create implements ProfileStore.
func (r *ProfileRepository) Create(ctx context.Context, id, username string) (*Profile, error) {
	now := r.now().UTC()
	profile := &Profile{
		ID:        id,
		Username:  username,
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	if _, err := r.db.NewInsert().Model(profile).Exec(ctx); err != nil {
		return nil, mapProfileError(err, id)
	}

	return profile, nil
}

// Update implements ProfileStore. An empty patch returns the current record.
func (r *ProfileRepository) Update(ctx context.Context, id string, patch ProfilePatch) (*Profile, error) {
	if patch.Username == nil {
		return r.FindByID(ctx, id)
	}

	res, err := r.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("username = ?", *patch.Username).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, mapProfileError(err, id)
	}

	if !affectedRows(res) {
		return nil, NewError(ErrProfileNotFound, nil, map[string]any{"id": id})
	}

	return r.FindByID(ctx, id)
}

// Delete implements ProfileStore.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*Profile)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapProfileError(err, id)
	}

	if !affectedRows(res) {
		return NewError(ErrProfileNotFound, nil, map[string]any{"id": id})
	}

	return nil
}

func mapProfileError(err error, id string) error {
	meta := map[string]any{"id": id}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NewError(ErrProfileNotFound, err, meta)
	case IsUniqueViolation(err):
		return NewError(ErrDuplicateProfile, err, meta)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return errors.Wrap(err, errors.CategoryInternal, "profile store failure").
			WithCode(errors.CodeInternal).
			WithMetadata(meta)
	}
}

// IsUniqueViolation reports whether err was raised by a unique constraint in
// sqlite or postgres, either raw from the driver or already mapped by the
// repository layer.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if repository.IsDuplicatedKey(err) {
		return true
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func affectedRows(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		return true
	}
	return n > 0
}
