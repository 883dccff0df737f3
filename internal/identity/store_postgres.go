package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
	txcontext "datex/pkg/platform/tx"
)

// PostgresStore persists identification records in the identifications table,
// indexed on (subject, identified_at). Every round trip is bounded by the
// configured store timeout.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) Save(ctx context.Context, r IdentificationRecord) error {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO identifications (subject, assurance, identified_by, identified_at, valid_until)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.Subject.String(), string(r.Assurance), r.IdentifiedBy.String(),
		r.IdentifiedAt, r.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("save identification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindLatestValid(ctx context.Context, subject id.Fingerprint, now time.Time) (IdentificationRecord, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT subject, assurance, identified_by, identified_at, valid_until
		FROM identifications
		WHERE subject = $1 AND valid_until > $2
		ORDER BY identified_at DESC
		LIMIT 1
	`
	var (
		r            IdentificationRecord
		rawSubject   string
		rawAssurance string
		rawBy        string
	)
	err := s.db.QueryRowContext(ctx, query, subject.String(), now).
		Scan(&rawSubject, &rawAssurance, &rawBy, &r.IdentifiedAt, &r.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return IdentificationRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return IdentificationRecord{}, fmt.Errorf("find identification: %w", err)
	}
	r.Subject = id.Fingerprint(rawSubject)
	r.Assurance = LevelOfAssurance(rawAssurance)
	by, err := id.ParseParticipantID(rawBy)
	if err != nil {
		return IdentificationRecord{}, fmt.Errorf("stored identifier participant invalid: %w", err)
	}
	r.IdentifiedBy = by
	return r, nil
}
