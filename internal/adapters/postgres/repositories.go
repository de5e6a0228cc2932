package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

// storeErr wraps storage failures with the failed operation. Callers above
// the adapters never see pgx errors directly; anything that is not a domain
// error is treated as internal by the transport layer.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// TemplateRepository

func (db *DB) CreateTemplate(ctx context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO agreement_templates (id, title, content_richtext, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, title, content_richtext, active, created_by, created_at, updated_at`,
		t.ID, t.Title, t.ContentRichtext, t.Active, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	out, err := scanTemplate(row)
	if err != nil {
		return domain.AgreementTemplate{}, storeErr("create template", err)
	}
	return out, nil
}

func (db *DB) GetTemplate(ctx context.Context, id string) (domain.AgreementTemplate, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, title, content_richtext, active, created_by, created_at, updated_at
		FROM agreement_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", id)
	}
	if err != nil {
		return domain.AgreementTemplate{}, storeErr("get template", err)
	}
	return t, nil
}

func (db *DB) UpdateTemplate(ctx context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE agreement_templates
		SET title = $2, content_richtext = $3, active = $4, updated_at = $5
		WHERE id = $1
		RETURNING id, title, content_richtext, active, created_by, created_at, updated_at`,
		t.ID, t.Title, t.ContentRichtext, t.Active, t.UpdatedAt)
	out, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", t.ID)
	}
	if err != nil {
		return domain.AgreementTemplate{}, storeErr("update template", err)
	}
	return out, nil
}

func (db *DB) ListActiveTemplates(ctx context.Context) ([]domain.AgreementTemplate, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, content_richtext, active, created_by, created_at, updated_at
		FROM agreement_templates WHERE active ORDER BY title`)
	if err != nil {
		return nil, storeErr("list templates", err)
	}
	defer rows.Close()
	var out []domain.AgreementTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, storeErr("list templates", err)
		}
		out = append(out, t)
	}
	return out, storeErr("list templates", rows.Err())
}

func scanTemplate(row pgx.Row) (domain.AgreementTemplate, error) {
	var t domain.AgreementTemplate
	err := row.Scan(&t.ID, &t.Title, &t.ContentRichtext, &t.Active, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// SnapshotReader

func (db *DB) GetVehicle(ctx context.Context, id string) (domain.VehicleSnapshot, error) {
	var v domain.VehicleSnapshot
	err := db.Pool.QueryRow(ctx, `
		SELECT id, make, model, year, vin, license_plate FROM vehicles WHERE id = $1`, id).
		Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.VIN, &v.LicensePlate)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VehicleSnapshot{}, domain.Errf(domain.KindNotFound, "vehicle %s not found", id)
	}
	if err != nil {
		return domain.VehicleSnapshot{}, storeErr("get vehicle", err)
	}
	return v, nil
}

func (db *DB) GetInspection(ctx context.Context, id string) (domain.InspectionSnapshot, error) {
	var i domain.InspectionSnapshot
	err := db.Pool.QueryRow(ctx, `
		SELECT id, vehicle_id, inspected_at, exterior_condition, interior_condition,
		       mechanical_condition, inspector_name, notes
		FROM inspections WHERE id = $1`, id).
		Scan(&i.ID, &i.VehicleID, &i.Date, &i.ExteriorCondition, &i.InteriorCondition,
			&i.MechanicalCondition, &i.InspectorName, &i.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InspectionSnapshot{}, domain.Errf(domain.KindNotFound, "inspection %s not found", id)
	}
	if err != nil {
		return domain.InspectionSnapshot{}, storeErr("get inspection", err)
	}
	return i, nil
}

// AuditLog

func (db *DB) Record(ctx context.Context, e domain.AuditEntry) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, entity_type, entity_id, actor_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.ActorID, e.Detail, e.CreatedAt)
	return storeErr("record audit entry", err)
}
