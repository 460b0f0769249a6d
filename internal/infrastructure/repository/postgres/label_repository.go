package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

type LabelRepository struct {
	db *sql.DB
}

func NewLabelRepository(db *sql.DB) *LabelRepository {
	return &LabelRepository{db: db}
}

func (r *LabelRepository) SaveLabel(ctx context.Context, label *domain.Label) error {
	nutrientsJSON, err := json.Marshal(label.Nutrients)
	if err != nil {
		return fmt.Errorf("marshal nutrients: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO labels (id, session_id, owner_id, name, brand, weight, nutrients, matched_product_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		label.ID, label.SessionID, label.OwnerID, label.Name, label.Brand, label.Weight,
		nutrientsJSON, label.MatchedProductID, label.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func (r *LabelRepository) ListSessionLabels(ctx context.Context, sessionID string) ([]domain.Label, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, owner_id, name, brand, weight, nutrients, matched_product_id, created_at
FROM labels
WHERE session_id = $1
ORDER BY created_at, id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session labels: %w", err)
	}
	defer rows.Close()

	var out []domain.Label
	for rows.Next() {
		var label domain.Label
		var nutrientsRaw []byte
		err := rows.Scan(
			&label.ID, &label.SessionID, &label.OwnerID, &label.Name, &label.Brand, &label.Weight,
			&nutrientsRaw, &label.MatchedProductID, &label.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		if len(nutrientsRaw) > 0 {
			if err := json.Unmarshal(nutrientsRaw, &label.Nutrients); err != nil {
				return nil, fmt.Errorf("unmarshal nutrients: %w", err)
			}
		}
		out = append(out, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return out, nil
}

// EnsureOpenSession returns the user's open session, creating one if
// none exists.
func (r *LabelRepository) EnsureOpenSession(ctx context.Context, ownerID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, status, created_at, closed_at
FROM sessions
WHERE owner_id = $1 AND status = $2
ORDER BY created_at DESC
LIMIT 1
`, ownerID, string(domain.SessionOpen))

	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find open session: %w", err)
	}

	created := &domain.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Status:    domain.SessionOpen,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sessions (id, owner_id, status, created_at)
VALUES ($1,$2,$3,$4)
`, created.ID, created.OwnerID, string(created.Status), created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return created, nil
}

// CloseSession transitions open -> closed exactly once; closing a
// closed session reports ErrSessionAlreadyClosed so the matching pass
// is never retriggered.
func (r *LabelRepository) CloseSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE sessions
SET status = $2, closed_at = $3
WHERE id = $1 AND status = $4
RETURNING id, owner_id, status, created_at, closed_at
`, sessionID, string(domain.SessionClosed), time.Now().UTC(), string(domain.SessionOpen))

	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("close session: %w", err)
	}

	var status string
	checkRow := r.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1`, sessionID)
	if scanErr := checkRow.Scan(&status); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "close session", fmt.Errorf("id %s", sessionID))
		}
		return nil, fmt.Errorf("check session status: %w", scanErr)
	}
	return nil, domain.WrapError(domain.ErrSessionAlreadyClosed, "close session", fmt.Errorf("id %s status %s", sessionID, status))
}

func (r *LabelRepository) SetLabelMatched(ctx context.Context, labelID, productID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE labels
SET matched_product_id = $2
WHERE id = $1 AND matched_product_id = ''
`, labelID, productID)
	if err != nil {
		return fmt.Errorf("set label matched: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set label matched rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "set label matched", fmt.Errorf("id %s not unmatched", labelID))
	}
	return nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var session domain.Session
	var status string
	var closedAt sql.NullTime

	err := row.Scan(&session.ID, &session.OwnerID, &status, &session.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		session.ClosedAt = &t
	}
	return &session, nil
}
