package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"parapet/internal/risk/models"
	"parapet/internal/risk/scoring"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
	txcontext "parapet/pkg/platform/tx"
)

// Postgres persists risks in the risks table (schema.sql in platform/postgres).
// Save is an ON CONFLICT upsert of the whole row; Execute takes a row lock
// (SELECT ... FOR UPDATE) for the validate-mutate window so racing workflow
// calls serialize at the database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a risk store backed by the given database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const riskColumns = `
	id, title, description, threat_description, risk_category, risk_nature,
	department, owner_user_id,
	confidentiality, integrity, availability, likelihood,
	calculated_score, risk_level, treatment,
	mitigated_confidentiality, mitigated_integrity, mitigated_availability,
	mitigated_likelihood, mitigated_score, mitigated_risk_level,
	status, rejection_reason, merged_into_risk_id, archived, control_ids,
	expiry_date, last_review_date, next_review_date,
	date_added, created_at, updated_at`

// Save upserts the full aggregate row. This is the single merge policy:
// insert when the ID is new, replace every column when it exists.
func (s *Postgres) Save(ctx context.Context, risk *models.Risk) error {
	query := `
		INSERT INTO risks (` + riskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26::uuid[],
			$27, $28, $29, $30, $31, $32)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			threat_description = EXCLUDED.threat_description,
			risk_category = EXCLUDED.risk_category,
			risk_nature = EXCLUDED.risk_nature,
			department = EXCLUDED.department,
			owner_user_id = EXCLUDED.owner_user_id,
			confidentiality = EXCLUDED.confidentiality,
			integrity = EXCLUDED.integrity,
			availability = EXCLUDED.availability,
			likelihood = EXCLUDED.likelihood,
			calculated_score = EXCLUDED.calculated_score,
			risk_level = EXCLUDED.risk_level,
			treatment = EXCLUDED.treatment,
			mitigated_confidentiality = EXCLUDED.mitigated_confidentiality,
			mitigated_integrity = EXCLUDED.mitigated_integrity,
			mitigated_availability = EXCLUDED.mitigated_availability,
			mitigated_likelihood = EXCLUDED.mitigated_likelihood,
			mitigated_score = EXCLUDED.mitigated_score,
			mitigated_risk_level = EXCLUDED.mitigated_risk_level,
			status = EXCLUDED.status,
			rejection_reason = EXCLUDED.rejection_reason,
			merged_into_risk_id = EXCLUDED.merged_into_risk_id,
			archived = EXCLUDED.archived,
			control_ids = EXCLUDED.control_ids,
			expiry_date = EXCLUDED.expiry_date,
			last_review_date = EXCLUDED.last_review_date,
			next_review_date = EXCLUDED.next_review_date,
			date_added = EXCLUDED.date_added,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).ExecContext(ctx, query, saveArgs(risk)...)
	if err != nil {
		return fmt.Errorf("upsert risk: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE id = $1`
	risk, err := scanRisk(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(riskID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("risk %s: %w", riskID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return risk, nil
}

func (s *Postgres) FindPage(ctx context.Context, filter Filter, page, limit int) (*Page, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("page and limit must be positive: %w", sentinel.ErrInvalidState)
	}

	where, args := filterClause(filter)
	q := s.querier(ctx)

	var total int
	countQuery := `SELECT COUNT(*) FROM risks` + where
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count risks: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT `+riskColumns+` FROM risks`+where+`
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := q.QueryContext(ctx, listQuery, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("query risks page: %w", err)
	}
	defer rows.Close()

	items := []*models.Risk{}
	for rows.Next() {
		risk, err := scanRisk(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risks page: %w", err)
	}

	return &Page{Items: items, TotalPages: (total + limit - 1) / limit}, nil
}

// Execute locks the row for the validate-mutate window. A failed callback
// rolls the transaction back, releasing the lock with nothing written. The
// mutate callback receives a ctx carrying the open transaction, so audit
// outbox writes made through it commit atomically with the risk row.
func (s *Postgres) Execute(ctx context.Context, riskID id.RiskID, validate func(*models.Risk) error, mutate func(ctx context.Context, risk *models.Risk) error) (*models.Risk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin risk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + riskColumns + ` FROM risks WHERE id = $1 FOR UPDATE`
	risk, err := scanRisk(tx.QueryRowContext(ctx, query, uuid.UUID(riskID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("risk %s: %w", riskID, sentinel.ErrNotFound)
		}
		return nil, err
	}

	if err := validate(risk); err != nil {
		return nil, err
	}
	txCtx := txcontext.WithTx(ctx, tx)
	if err := mutate(txCtx, risk); err != nil {
		return nil, err
	}

	if err := s.Save(txCtx, risk); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit risk transaction: %w", err)
	}
	return risk, nil
}

func filterClause(filter Filter) (string, []any) {
	where := ""
	var args []any
	and := func(cond string) {
		if where == "" {
			where = " WHERE " + cond
			return
		}
		where += " AND " + cond
	}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		and(fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		and(fmt.Sprintf("archived = $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		and(fmt.Sprintf("next_review_date IS NOT NULL AND next_review_date <= $%d", len(args)))
	}
	return where, args
}

func saveArgs(risk *models.Risk) []any {
	var ownerID *uuid.UUID
	if risk.OwnerID != nil {
		u := uuid.UUID(*risk.OwnerID)
		ownerID = &u
	}
	var mergedInto *uuid.UUID
	if risk.MergedInto != nil {
		u := uuid.UUID(*risk.MergedInto)
		mergedInto = &u
	}
	var mitScore *int
	var mitLevel *string
	if risk.Mitigation.Result != nil {
		score := risk.Mitigation.Result.Score
		level := string(risk.Mitigation.Result.Level)
		mitScore = &score
		mitLevel = &level
	}

	controlIDs := make([]string, len(risk.ControlIDs))
	for i, cid := range risk.ControlIDs {
		controlIDs[i] = cid.String()
	}

	return []any{
		uuid.UUID(risk.ID),
		risk.Title,
		risk.Description,
		risk.ThreatDescription,
		risk.Category,
		string(risk.Nature),
		risk.Department,
		ownerID,
		risk.Scores.Confidentiality,
		risk.Scores.Integrity,
		risk.Scores.Availability,
		risk.Scores.Likelihood,
		risk.Assessment.Score,
		string(risk.Assessment.Level),
		string(risk.Treatment),
		risk.Mitigation.Confidentiality,
		risk.Mitigation.Integrity,
		risk.Mitigation.Availability,
		risk.Mitigation.Likelihood,
		mitScore,
		mitLevel,
		string(risk.Status),
		risk.RejectionReason,
		mergedInto,
		risk.Archived,
		pq.Array(controlIDs),
		risk.ExpiryDate,
		risk.LastReviewDate,
		risk.NextReviewDate,
		risk.DateAdded,
		risk.CreatedAt,
		risk.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRisk(row rowScanner) (*models.Risk, error) {
	var (
		risk       models.Risk
		riskUUID   uuid.UUID
		nature     string
		level      string
		treatment  string
		status     string
		ownerID    *uuid.UUID
		mergedInto *uuid.UUID
		mitScore   *int
		mitLevel   *string
		controlIDs pq.StringArray
	)

	err := row.Scan(
		&riskUUID,
		&risk.Title,
		&risk.Description,
		&risk.ThreatDescription,
		&risk.Category,
		&nature,
		&risk.Department,
		&ownerID,
		&risk.Scores.Confidentiality,
		&risk.Scores.Integrity,
		&risk.Scores.Availability,
		&risk.Scores.Likelihood,
		&risk.Assessment.Score,
		&level,
		&treatment,
		&risk.Mitigation.Confidentiality,
		&risk.Mitigation.Integrity,
		&risk.Mitigation.Availability,
		&risk.Mitigation.Likelihood,
		&mitScore,
		&mitLevel,
		&status,
		&risk.RejectionReason,
		&mergedInto,
		&risk.Archived,
		&controlIDs,
		&risk.ExpiryDate,
		&risk.LastReviewDate,
		&risk.NextReviewDate,
		&risk.DateAdded,
		&risk.CreatedAt,
		&risk.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan risk: %w", err)
	}

	risk.ID = id.RiskID(riskUUID)
	risk.Nature = models.RiskNature(nature)
	risk.Assessment.Level = scoring.Level(level)
	risk.Treatment = models.Treatment(treatment)
	risk.Status = models.RiskStatus(status)

	if ownerID != nil {
		owner := id.UserID(*ownerID)
		risk.OwnerID = &owner
	}
	if mergedInto != nil {
		target := id.RiskID(*mergedInto)
		risk.MergedInto = &target
	}
	if mitScore != nil && mitLevel != nil {
		risk.Mitigation.Result = &scoring.Result{Score: *mitScore, Level: scoring.Level(*mitLevel)}
	}

	risk.ControlIDs = make([]id.ControlID, 0, len(controlIDs))
	for _, raw := range controlIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse control id %q: %w", raw, err)
		}
		risk.ControlIDs = append(risk.ControlIDs, id.ControlID(parsed))
	}

	return &risk, nil
}
