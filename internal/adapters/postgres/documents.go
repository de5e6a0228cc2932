package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

const documentCols = `id, agreement_id, name, size_bytes, url, path, uploaded_at`

func scanDocument(row pgx.Row) (domain.SupportingDocument, error) {
	var d domain.SupportingDocument
	err := row.Scan(&d.ID, &d.AgreementID, &d.Name, &d.SizeBytes, &d.URL, &d.Path, &d.UploadedAt)
	return d, err
}

// AttachDocument inserts the reference only if the owning agreement is still
// mutable, in the same statement, so a concurrent sign cannot slip a document
// under a frozen agreement.
func (db *DB) AttachDocument(ctx context.Context, d domain.SupportingDocument) (domain.SupportingDocument, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO supporting_documents (id, agreement_id, name, size_bytes, url, path, uploaded_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (
			SELECT 1 FROM agreements WHERE id = $2 AND status NOT IN ('signed', 'terminated')
		)
		RETURNING `+documentCols,
		d.ID, d.AgreementID, d.Name, d.SizeBytes, d.URL, d.Path, d.UploadedAt)
	out, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if rerr := db.documentRefused(ctx, d.AgreementID); rerr != nil {
			return domain.SupportingDocument{}, rerr
		}
		return domain.SupportingDocument{}, storeErr("attach document", err)
	}
	if err != nil {
		return domain.SupportingDocument{}, storeErr("attach document", err)
	}
	return out, nil
}

func (db *DB) DetachDocument(ctx context.Context, agreementID, path string) (domain.SupportingDocument, error) {
	row := db.Pool.QueryRow(ctx, `
		DELETE FROM supporting_documents d
		USING agreements a
		WHERE d.agreement_id = $1 AND d.path = $2
		  AND a.id = d.agreement_id AND a.status NOT IN ('signed', 'terminated')
		RETURNING d.id, d.agreement_id, d.name, d.size_bytes, d.url, d.path, d.uploaded_at`,
		agreementID, path)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := db.documentRefused(ctx, agreementID); err != nil {
			return domain.SupportingDocument{}, err
		}
		return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "supporting document not found")
	}
	if err != nil {
		return domain.SupportingDocument{}, storeErr("detach document", err)
	}
	return doc, nil
}

func (db *DB) ListDocuments(ctx context.Context, agreementID string) ([]domain.SupportingDocument, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+documentCols+` FROM supporting_documents
		WHERE agreement_id = $1 ORDER BY uploaded_at`, agreementID)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	defer rows.Close()
	var out []domain.SupportingDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, storeErr("list documents", err)
		}
		out = append(out, d)
	}
	return out, storeErr("list documents", rows.Err())
}

// documentRefused explains a zero-row document mutation: missing agreement or
// an agreement whose status no longer permits document changes. Returns nil
// when the agreement itself would have allowed it.
func (db *DB) documentRefused(ctx context.Context, agreementID string) error {
	a, err := db.GetAgreement(ctx, agreementID)
	if err != nil {
		return err
	}
	if a.Status == domain.StatusSigned || a.Status == domain.StatusTerminated {
		return domain.Errf(domain.KindImmutableState, "documents cannot change on a %s agreement", a.Status)
	}
	return nil
}
