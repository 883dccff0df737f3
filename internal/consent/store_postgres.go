package consent

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

// PostgresStore persists consent records in the consents table, indexed on
// (subject, requesting_participant, status) and on expires_at. Linearizability
// per id comes from Postgres row-level locking on the guarded UPDATE.
// Every round trip is bounded by the configured store timeout.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, r Record) error {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO consents
			(id, subject, requesting_participant, providing_participant,
			 purpose, categories, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		r.ID.String(), r.Subject.String(),
		r.RequestingParticipant.String(), r.ProvidingParticipant.String(),
		r.Purpose.String(), strings.Join(r.Categories.Strings(), ","),
		string(r.Status), r.CreatedAt, r.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, cid id.ConsentID) (Record, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, subject, requesting_participant, providing_participant,
		       purpose, categories, status, created_at, expires_at,
		       revoked_at, revoked_by
		FROM consents WHERE id = $1
	`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, cid.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	return r, err
}

// UpdateStatus performs the guarded transition in a single statement so the
// expiry re-check and the write are atomic. Only granted rows move; a revoke
// on a row whose expiry has passed records the expiry instead.
func (s *PostgresStore) UpdateStatus(ctx context.Context, cid id.ConsentID, to Status, actor string, at time.Time) error {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if to == StatusRevoked {
		query := `
			UPDATE consents
			SET status = CASE WHEN expires_at <= $3 THEN 'expired' ELSE 'revoked' END,
			    revoked_at = CASE WHEN expires_at <= $3 THEN NULL ELSE $3 END,
			    revoked_by = CASE WHEN expires_at <= $3 THEN NULL ELSE $2 END
			WHERE id = $1 AND status = 'granted'
		`
		res, err = s.execer(ctx).ExecContext(ctx, query, cid.String(), actor, at)
	} else {
		query := `
			UPDATE consents SET status = $2
			WHERE id = $1 AND status = 'granted'
		`
		res, err = s.execer(ctx).ExecContext(ctx, query, cid.String(), string(to))
	}
	if err != nil {
		return fmt.Errorf("update consent status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either missing or already terminal; distinguish for the caller.
		if _, findErr := s.FindByID(ctx, cid); findErr != nil {
			return findErr
		}
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.Fingerprint, requesting id.ParticipantID, status Status) ([]Record, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, subject, requesting_participant, providing_participant,
		       purpose, categories, status, created_at, expires_at,
		       revoked_at, revoked_by
		FROM consents
		WHERE subject = $1
		  AND ($2 = '' OR requesting_participant = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
	`
	requestingArg := ""
	if !requesting.IsNil() {
		requestingArg = requesting.String()
	}
	rows, err := s.db.QueryContext(ctx, query, subject.String(), requestingArg, string(status))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r          Record
		rawID      string
		subject    string
		requesting string
		providing  string
		purpose    string
		categories string
		status     string
		revokedAt  sql.NullTime
		revokedBy  sql.NullString
	)
	err := row.Scan(&rawID, &subject, &requesting, &providing, &purpose,
		&categories, &status, &r.CreatedAt, &r.ExpiresAt, &revokedAt, &revokedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan consent: %w", err)
	}

	cid, err := id.ParseConsentID(rawID)
	if err != nil {
		return Record{}, fmt.Errorf("stored consent id invalid: %w", err)
	}
	reqID, err := id.ParseParticipantID(requesting)
	if err != nil {
		return Record{}, fmt.Errorf("stored requesting participant invalid: %w", err)
	}
	provID, err := id.ParseParticipantID(providing)
	if err != nil {
		return Record{}, fmt.Errorf("stored providing participant invalid: %w", err)
	}

	r.ID = cid
	r.Subject = id.Fingerprint(subject)
	r.RequestingParticipant = reqID
	r.ProvidingParticipant = provID
	r.Purpose = id.ConsentPurpose(purpose)
	r.Categories = id.CategorySetFromStrings(strings.Split(categories, ","))
	r.Status = Status(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		r.RevokedAt = &t
	}
	if revokedBy.Valid {
		r.RevokedBy = revokedBy.String
	}
	return r, nil
}
