package signup

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"beta/cmd/internal/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const signupColumns = `id, email, why, source_address, bot_score, verification_token, status,
       problem_category, other_problem_text, pain_level, signup_date, verified_date`

// PostgresStore persists signups in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "beta").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "beta"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// ApplySchema creates the schema, table and indexes if they do not exist.
func (s *PostgresStore) ApplySchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	sql := strings.NewReplacer(
		"{{schema}}", pgx.Identifier{s.schema}.Sanitize(),
		"{{signups}}", pgIdent(s.schema, "signups"),
	).Replace(schemaSQL)
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("signup: apply schema: %w", err)
	}
	return nil
}

// Create inserts rec with a fresh ULID.
func (s *PostgresStore) Create(ctx context.Context, rec Record) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(rec.VerificationToken) == "" || strings.TrimSpace(rec.Email) == "" {
		return Record{}, ErrInvalidInput
	}
	if !rec.Status.Valid() {
		rec.Status = StatusUnverified
	}
	if rec.SignupDate.IsZero() {
		rec.SignupDate = time.Now().UTC()
	}
	id, err := ids.NewULID(rec.SignupDate)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id

	signups := pgIdent(s.schema, "signups")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+signups+` (`+signupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID,
		rec.Email,
		rec.Why,
		rec.SourceAddress,
		rec.BotScore,
		rec.VerificationToken,
		string(rec.Status),
		rec.ProblemCategory,
		rec.OtherProblemText,
		rec.PainLevel,
		rec.SignupDate,
		rec.VerifiedDate,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// FindByToken fetches a record by verification token.
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Record{}, ErrInvalidInput
	}

	signups := pgIdent(s.schema, "signups")
	var (
		out    Record
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+signupColumns+`
		   FROM `+signups+`
		  WHERE verification_token = $1
		  ORDER BY id
		  LIMIT 1`,
		token,
	).Scan(
		&out.ID,
		&out.Email,
		&out.Why,
		&out.SourceAddress,
		&out.BotScore,
		&out.VerificationToken,
		&status,
		&out.ProblemCategory,
		&out.OtherProblemText,
		&out.PainLevel,
		&out.SignupDate,
		&out.VerifiedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	out.Status = Status(status)
	return out, nil
}

// Patch updates the non-nil fields of p. COALESCE keeps columns whose parameter is NULL.
func (s *PostgresStore) Patch(ctx context.Context, id string, p Patch) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if p.Empty() {
		return nil
	}
	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}

	signups := pgIdent(s.schema, "signups")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+signups+`
		    SET status = COALESCE($2, status),
		        verified_date = COALESCE($3, verified_date),
		        problem_category = COALESCE($4, problem_category),
		        other_problem_text = COALESCE($5, other_problem_text),
		        pain_level = COALESCE($6, pain_level)
		  WHERE id = $1`,
		id,
		status,
		p.VerifiedDate,
		p.ProblemCategory,
		p.OtherProblemText,
		p.PainLevel,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping reports whether the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	return s.pool.Ping(ctx)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
