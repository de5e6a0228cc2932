package ports

import (
	"context"
	"time"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

// TemplateRepository stores reusable agreement templates. Append-only:
// templates are never deleted so historical agreements keep a valid reference.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error)
	GetTemplate(ctx context.Context, id string) (domain.AgreementTemplate, error)
	UpdateTemplate(ctx context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]domain.AgreementTemplate, error)
}

// FinalizeParams freezes content and issues a signing token in one
// conditional write.
type FinalizeParams struct {
	AgreementID   string
	DriverID      string
	FrozenContent string
	SigningToken  string
	TokenIssuedAt time.Time
}

// SignParams commits a signature. The repository must condition the update on
// both the pending status and the exact token in a single statement.
type SignParams struct {
	AgreementID  string
	SigningToken string
	SignatureURL string
	SignedAt     time.Time
	// TokenNotBefore rejects tokens issued before this instant (TTL
	// enforcement); the zero value disables the check.
	TokenNotBefore time.Time
}

// AgreementRepository persists agreements. Every status transition is a
// single conditional update; implementations report a lost race as a
// state-conflict (or invalid-token, for Sign) domain error, never by
// returning stale rows.
type AgreementRepository interface {
	CreateAgreement(ctx context.Context, a domain.Agreement) (domain.Agreement, error)
	GetAgreement(ctx context.Context, id string) (domain.Agreement, error)
	ListAgreements(ctx context.Context) ([]domain.Agreement, error)
	// Finalize succeeds only from draft or pending_signature.
	Finalize(ctx context.Context, p FinalizeParams) (domain.Agreement, error)
	// Sign succeeds only while pending_signature with a matching token.
	Sign(ctx context.Context, p SignParams) (domain.Agreement, error)
	// LinkInspection succeeds only from draft or pending_signature.
	LinkInspection(ctx context.Context, agreementID, inspectionID string) (domain.Agreement, error)
	// Terminate succeeds from pending_signature or signed; on an already
	// terminated agreement it reports alreadyTerminated instead of erroring.
	Terminate(ctx context.Context, agreementID string) (a domain.Agreement, alreadyTerminated bool, err error)
	DeleteAgreement(ctx context.Context, id string) error
}

// DocumentRepository stores supporting document references. Mutations are
// conditioned on the owning agreement's status in the same statement.
type DocumentRepository interface {
	AttachDocument(ctx context.Context, d domain.SupportingDocument) (domain.SupportingDocument, error)
	DetachDocument(ctx context.Context, agreementID, path string) (domain.SupportingDocument, error)
	ListDocuments(ctx context.Context, agreementID string) ([]domain.SupportingDocument, error)
}

// DriverDirectory is a paginated read projection over drivers.
type DriverDirectory interface {
	GetDriver(ctx context.Context, id string) (domain.Driver, error)
	SearchDrivers(ctx context.Context, query string, page, pageSize int) (drivers []domain.Driver, totalPages int, err error)
}

// SnapshotReader supplies the read-only vehicle/inspection field bags used to
// build rendering contexts. Record CRUD lives outside this core.
type SnapshotReader interface {
	GetVehicle(ctx context.Context, id string) (domain.VehicleSnapshot, error)
	GetInspection(ctx context.Context, id string) (domain.InspectionSnapshot, error)
}

// AuditLog appends immutable audit entries for mutating operations.
type AuditLog interface {
	Record(ctx context.Context, e domain.AuditEntry) error
}
