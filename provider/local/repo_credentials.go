package local

import (
	"context"
	"net/mail"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Credentials persists local identities.
type Credentials interface {
	repository.Repository[*Credential]

	GetByEmail(ctx context.Context, email string) (*Credential, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id string) error
}

type credentials struct {
	repository.Repository[*Credential]
	db *bun.DB
}

var (
	_ Credentials                        = (*credentials)(nil)
	_ repository.Repository[*Credential] = (*credentials)(nil)
)

// NewCredentialsRepository returns a Credentials repository backed by db.
func NewCredentialsRepository(db *bun.DB) Credentials {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &credentials{
		Repository: repo,
		db:         db,
	}
}

func (c *credentials) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	return c.GetByIdentifierTx(ctx, c.db, identifier, criteria...)
}

// GetByIdentifierTx resolves identifier as an email when it parses as one,
// otherwise as a record id.
func (c *credentials) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	identifier = strings.TrimSpace(identifier)

	column := "id"
	value := identifier
	if _, err := mail.ParseAddress(identifier); err == nil {
		column = "email"
		value = strings.ToLower(identifier)
	}

	record := &Credential{}
	q := tx.NewSelect().Model(record)
	for _, cr := range criteria {
		q.Apply(cr)
	}

	err := q.
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": identifier,
				})
		}
		return nil, err
	}

	return record, nil
}

func (c *credentials) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return c.GetByIdentifier(ctx, email)
}

func (c *credentials) DeleteByID(ctx context.Context, id string) error {
	return c.DeleteByIDTx(ctx, c.db, id)
}

func (c *credentials) DeleteByIDTx(ctx context.Context, tx bun.IDB, id string) error {
	res, err := tx.NewDelete().
		Model((*Credential)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id,
			})
	}

	return nil
}
