// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"libracore/internal/audit"
)

const memberColumns = `id, identifier, full_name, COALESCE(email, ''), status, created_at, updated_at`

// service implements the Service interface.
type service struct {
	db       *sql.DB
	auditLog *audit.Log
	tracer   trace.Tracer
	limiter  *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sql.DB, auditLog *audit.Log) Service {
	return &service{
		db:       db,
		auditLog: auditLog,
		tracer:   otel.Tracer("libracore/membership"),
		limiter:  rate.NewLimiter(rate.Every(time.Minute/30), 30),
	}
}

// normalizeIdentifier upper-cases and trims a member identifier so lookups
// are case-insensitive regardless of how the card number was typed.
func normalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

func (s *service) RegisterMember(ctx context.Context, identifier, fullName, email, password string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.register")
	defer span.End()

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if strings.TrimSpace(fullName) == "" {
		return nil, fmt.Errorf("full name is required")
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := &Member{
		ID:         uuid.New(),
		Identifier: identifier,
		FullName:   strings.TrimSpace(fullName),
		Email:      strings.TrimSpace(email),
		Status:     StatusActive,
	}
	span.SetAttributes(attribute.String("member.identifier", identifier))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO members (id, identifier, full_name, email, status, password_hash, salt)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING created_at, updated_at
	`, member.ID, member.Identifier, member.FullName, member.Email, member.Status, passwordHash, salt).
		Scan(&member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateIdentifier
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	if err := s.auditLog.RecordTx(ctx, tx, "member", member.ID, "MemberRegistered", member); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return member, nil
}

func (s *service) Authenticate(ctx context.Context, identifier, password string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.authenticate")
	defer span.End()

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	identifier = normalizeIdentifier(identifier)

	member := &Member{}
	cred := credential{}
	err := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`, COALESCE(password_hash, ''), COALESCE(salt, '')
		FROM members
		WHERE identifier = $1
	`, identifier).Scan(
		&member.ID,
		&member.Identifier,
		&member.FullName,
		&member.Email,
		&member.Status,
		&member.CreatedAt,
		&member.UpdatedAt,
		&cred.PasswordHash,
		&cred.Salt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}

	if cred.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if member.Status == StatusSuspended {
		return nil, ErrMemberSuspended
	}

	return member, nil
}

func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE id = $1
	`, id)
	return scanMember(row)
}

func (s *service) FindByIdentifier(ctx context.Context, identifier string) (*Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE identifier = $1
	`, normalizeIdentifier(identifier))
	return scanMember(row)
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.set_status",
		trace.WithAttributes(attribute.String("member.status", status)),
	)
	defer span.End()

	if status != StatusActive && status != StatusSuspended {
		return nil, fmt.Errorf("unknown member status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	member := &Member{}
	err = tx.QueryRowContext(ctx, `
		UPDATE members
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+memberColumns+`
	`, status, id).Scan(
		&member.ID,
		&member.Identifier,
		&member.FullName,
		&member.Email,
		&member.Status,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update member status: %w", err)
	}

	if err := s.auditLog.RecordTx(ctx, tx, "member", member.ID, "MemberStatusChanged", map[string]string{
		"status": status,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return member, nil
}

func scanMember(row *sql.Row) (*Member, error) {
	member := &Member{}
	err := row.Scan(
		&member.ID,
		&member.Identifier,
		&member.FullName,
		&member.Email,
		&member.Status,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return member, nil
}
