package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
	txcontext "datex/pkg/platform/tx"
)

// PostgresStore persists participants in the participants table with a
// secondary index on (industry, status). Every round trip is bounded by the
// configured store timeout.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) Save(ctx context.Context, p Participant) error {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	caps := make([]string, len(p.Capabilities))
	for i, c := range p.Capabilities {
		caps[i] = string(c)
	}
	query := `
		INSERT INTO participants
			(id, name, industry, trust_level, status, capabilities,
			 not_before, not_after, secret_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			trust_level = EXCLUDED.trust_level,
			status = EXCLUDED.status,
			capabilities = EXCLUDED.capabilities,
			not_before = EXCLUDED.not_before,
			not_after = EXCLUDED.not_after,
			secret_hash = EXCLUDED.secret_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(), p.Name, p.Industry, string(p.TrustLevel), string(p.Status),
		strings.Join(caps, ","), nullableTime(p.NotBefore), nullableTime(p.NotAfter),
		p.SecretHash, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, pid id.ParticipantID) (Participant, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, name, industry, trust_level, status, capabilities,
		       not_before, not_after, secret_hash, created_at, updated_at
		FROM participants WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, pid.String()))
}

func (s *PostgresStore) ListByIndustry(ctx context.Context, industry string, status Status) ([]Participant, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, name, industry, trust_level, status, capabilities,
		       not_before, not_after, secret_hash, created_at, updated_at
		FROM participants WHERE industry = $1 AND status = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, industry, string(status))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (Participant, error) {
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, sentinel.ErrNotFound
	}
	return p, err
}

func scanParticipant(row rowScanner) (Participant, error) {
	var (
		p         Participant
		rawID     string
		trust     string
		status    string
		caps      string
		notBefore sql.NullTime
		notAfter  sql.NullTime
	)
	err := row.Scan(&rawID, &p.Name, &p.Industry, &trust, &status, &caps,
		&notBefore, &notAfter, &p.SecretHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Participant{}, err
		}
		return Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	pid, err := id.ParseParticipantID(rawID)
	if err != nil {
		return Participant{}, fmt.Errorf("stored participant id invalid: %w", err)
	}
	p.ID = pid
	p.TrustLevel = TrustLevel(trust)
	p.Status = Status(status)
	if caps != "" {
		for _, c := range strings.Split(caps, ",") {
			p.Capabilities = append(p.Capabilities, Capability(c))
		}
	}
	if notBefore.Valid {
		p.NotBefore = notBefore.Time
	}
	if notAfter.Valid {
		p.NotAfter = notAfter.Time
	}
	return p, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
