package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

const agreementCols = `id, vehicle_id, inspection_id, template_id, status, final_content_richtext,
	pending_driver_id, signed_by_driver_id, signing_token, token_issued_at, signature_url, signed_at,
	created_by, created_at, updated_at`

func scanAgreement(row pgx.Row) (domain.Agreement, error) {
	var a domain.Agreement
	err := row.Scan(&a.ID, &a.VehicleID, &a.InspectionID, &a.TemplateID, &a.Status, &a.FinalContentRichtext,
		&a.PendingDriverID, &a.SignedByDriverID, &a.SigningToken, &a.TokenIssuedAt, &a.SignatureURL, &a.SignedAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (db *DB) CreateAgreement(ctx context.Context, a domain.Agreement) (domain.Agreement, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO agreements (id, vehicle_id, inspection_id, template_id, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+agreementCols,
		a.ID, a.VehicleID, a.InspectionID, a.TemplateID, a.Status, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	out, err := scanAgreement(row)
	if err != nil {
		return domain.Agreement{}, storeErr("create agreement", err)
	}
	return out, nil
}

func (db *DB) GetAgreement(ctx context.Context, id string) (domain.Agreement, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+agreementCols+` FROM agreements WHERE id = $1`, id)
	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Agreement{}, domain.Errf(domain.KindNotFound, "agreement %s not found", id)
	}
	if err != nil {
		return domain.Agreement{}, storeErr("get agreement", err)
	}
	return a, nil
}

func (db *DB) ListAgreements(ctx context.Context) ([]domain.Agreement, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+agreementCols+` FROM agreements ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr("list agreements", err)
	}
	defer rows.Close()
	var out []domain.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, storeErr("list agreements", err)
		}
		out = append(out, a)
	}
	return out, storeErr("list agreements", rows.Err())
}

// Finalize freezes content and issues the token in one conditional write.
// The status predicate makes two racing finalize calls serialize: the loser
// sees the winner's committed row, not the prior state.
func (db *DB) Finalize(ctx context.Context, p ports.FinalizeParams) (domain.Agreement, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE agreements
		SET status = 'pending_signature',
		    final_content_richtext = $2,
		    pending_driver_id = $3,
		    signing_token = $4,
		    token_issued_at = $5,
		    updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'pending_signature')
		RETURNING `+agreementCols,
		p.AgreementID, p.FrozenContent, p.DriverID, p.SigningToken, p.TokenIssuedAt)
	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Agreement{}, db.transitionRefused(ctx, p.AgreementID, "finalised")
	}
	if err != nil {
		return domain.Agreement{}, storeErr("finalize agreement", err)
	}
	return a, nil
}

// Sign is the at-most-once transition: conditioned on both the pending status
// and the exact token, so a consumed or superseded token can never match.
func (db *DB) Sign(ctx context.Context, p ports.SignParams) (domain.Agreement, error) {
	var notBefore *time.Time
	if !p.TokenNotBefore.IsZero() {
		notBefore = &p.TokenNotBefore
	}
	row := db.Pool.QueryRow(ctx, `
		UPDATE agreements
		SET status = 'signed',
		    signed_by_driver_id = pending_driver_id,
		    pending_driver_id = NULL,
		    signed_at = $3,
		    signature_url = $4,
		    signing_token = NULL,
		    token_issued_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending_signature' AND signing_token = $2
		  AND ($5::timestamptz IS NULL OR token_issued_at >= $5)
		RETURNING `+agreementCols,
		p.AgreementID, p.SigningToken, p.SignedAt, p.SignatureURL, notBefore)
	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Deliberately indistinguishable: wrong token, consumed token,
		// expired token and unknown agreement all answer the same.
		return domain.Agreement{}, domain.Errf(domain.KindInvalidToken, "signing token is not valid")
	}
	if err != nil {
		return domain.Agreement{}, storeErr("sign agreement", err)
	}
	return a, nil
}

func (db *DB) LinkInspection(ctx context.Context, agreementID, inspectionID string) (domain.Agreement, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE agreements
		SET inspection_id = $2, updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'pending_signature')
		RETURNING `+agreementCols,
		agreementID, inspectionID)
	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Agreement{}, db.transitionRefused(ctx, agreementID, "re-linked")
	}
	if err != nil {
		return domain.Agreement{}, storeErr("link inspection", err)
	}
	return a, nil
}

func (db *DB) Terminate(ctx context.Context, agreementID string) (domain.Agreement, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE agreements
		SET status = 'terminated', signing_token = NULL, token_issued_at = NULL, updated_at = now()
		WHERE id = $1 AND status IN ('pending_signature', 'signed')
		RETURNING `+agreementCols,
		agreementID)
	a, err := scanAgreement(row)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Agreement{}, false, storeErr("terminate agreement", err)
	}
	// Not in a terminable state: already terminated is an idempotent no-op,
	// everything else is a conflict.
	a, err = db.GetAgreement(ctx, agreementID)
	if err != nil {
		return domain.Agreement{}, false, err
	}
	if a.Status == domain.StatusTerminated {
		return a, true, nil
	}
	return domain.Agreement{}, false, domain.Errf(domain.KindStateConflict,
		"agreement cannot be terminated while %s", a.Status)
}

func (db *DB) DeleteAgreement(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM agreements WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete agreement", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Errf(domain.KindNotFound, "agreement %s not found", id)
	}
	return nil
}

// transitionRefused explains a zero-row conditional update: either the row is
// gone or its status moved on.
func (db *DB) transitionRefused(ctx context.Context, agreementID, verb string) error {
	a, err := db.GetAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	return domain.Errf(domain.KindStateConflict, "agreement cannot be %s while %s", verb, a.Status)
}
