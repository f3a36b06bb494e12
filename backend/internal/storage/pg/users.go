package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
	sharedpg "github.com/crmportal/crmportal/shared/storage/pg"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// =========================================================================
// Public Methods (satisfy the service.AuthStorage interface)
// =========================================================================

func (s *Storage) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var created domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = s.createUser(ctx, tx, user)
		return err
	})
	return created, err
}

func (s *Storage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.userBy(ctx, s.db, "email", email)
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, domain.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.userBy(ctx, s.db, "id", id)
}

func (s *Storage) UserByVerificationToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.userBy(ctx, s.db, "verification_token_hash", tokenHash)
}

func (s *Storage) UserByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.userBy(ctx, s.db, "reset_token_hash", tokenHash)
}

// UpdateUser applies patch in a single statement. The If* guards become
// part of the WHERE clause, zero rows affected means ErrNotFound.
func (s *Storage) UpdateUser(ctx context.Context, id domain.UserId, patch domain.UserPatch) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateUser(ctx, tx, id, patch)
	})
}

// =========================================================================
// Internal Methods (core logic, operate on a Querier)
// =========================================================================

const userColumns = `id::text, email, pass_hash, verified,
	verification_token_hash, verification_expires,
	reset_token_hash, reset_expires,
	created_at, updated_at`

func (s *Storage) createUser(ctx context.Context, q sharedpg.Querier, user domain.User) (domain.User, error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO users (email, pass_hash, verified, verification_token_hash, verification_expires, reset_token_hash, reset_expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.Email, user.PassHash, user.Verified,
		nullString(user.VerificationTokenHash), nullTime(user.VerificationExpires),
		nullString(user.ResetTokenHash), nullTime(user.ResetExpires),
	)
	created, err := scanUser(row)
	if constraint, ok := sharedpg.IsUniqueViolation(err); ok {
		return domain.User{}, oops.Code("USER_EXISTS").With("constraint", constraint).Wrap(domain.ErrConflict)
	}
	if err != nil {
		return domain.User{}, oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}
	return created, nil
}

// column is always one of the constants above, never user input
func (s *Storage) userBy(ctx context.Context, q sharedpg.Querier, column string, value string) (domain.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, oops.Code("USER_QUERY_FAILED").With("by", column).Wrap(err)
	}
	return user, nil
}

func (s *Storage) updateUser(ctx context.Context, q sharedpg.Querier, id domain.UserId, patch domain.UserPatch) error {
	var (
		sets []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	set := func(column string, v any) {
		sets = append(sets, column+" = "+arg(v))
	}

	if patch.PassHash != nil {
		set("pass_hash", *patch.PassHash)
	}
	if patch.Verified != nil {
		set("verified", *patch.Verified)
	}
	if patch.VerificationTokenHash != nil {
		set("verification_token_hash", nullString(*patch.VerificationTokenHash))
	}
	if patch.VerificationExpires != nil {
		set("verification_expires", nullTime(*patch.VerificationExpires))
	}
	if patch.ResetTokenHash != nil {
		set("reset_token_hash", nullString(*patch.ResetTokenHash))
	}
	if patch.ResetExpires != nil {
		set("reset_expires", nullTime(*patch.ResetExpires))
	}
	sets = append(sets, "updated_at = now()")

	where := "id = " + arg(id)
	if patch.IfVerificationTokenHash != nil {
		where += " AND COALESCE(verification_token_hash, '') = " + arg(*patch.IfVerificationTokenHash)
	}
	if patch.IfResetTokenHash != nil {
		where += " AND COALESCE(reset_token_hash, '') = " + arg(*patch.IfResetTokenHash)
	}

	result, err := q.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE "+where, args...)
	if constraint, ok := sharedpg.IsUniqueViolation(err); ok {
		return oops.Code("USER_UPDATE_CONFLICT").With("constraint", constraint).Wrap(domain.ErrConflict)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// =========================================================================
// Scanning helpers
// =========================================================================

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                               domain.User
		verificationHash, resetHash     sql.NullString
		verificationExpires, resetUntil sql.NullTime
	)
	err := row.Scan(
		&u.Id, &u.Email, &u.PassHash, &u.Verified,
		&verificationHash, &verificationExpires,
		&resetHash, &resetUntil,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.VerificationTokenHash = verificationHash.String
	u.VerificationExpires = verificationExpires.Time
	u.ResetTokenHash = resetHash.String
	u.ResetExpires = resetUntil.Time
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
