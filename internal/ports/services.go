package ports

import (
	"context"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

// Service-level contracts consumed by the HTTP adapter.

type Templates interface {
	Create(ctx context.Context, title, content string, active bool, actorID string) (domain.AgreementTemplate, error)
	Get(ctx context.Context, id string) (domain.AgreementTemplate, error)
	Update(ctx context.Context, id, title, content string, active bool, actorID string) (domain.AgreementTemplate, error)
	ListActive(ctx context.Context) ([]domain.AgreementTemplate, error)
}

// FinalizeResult carries the committed agreement plus a non-fatal delivery
// warning when the signing email could not be sent.
type FinalizeResult struct {
	Agreement       domain.Agreement
	DeliveryWarning string
}

type TerminateResult struct {
	Agreement       domain.Agreement
	DeliveryWarning string
}

type Agreements interface {
	Create(ctx context.Context, vehicleID, inspectionID, templateID, actorID string) (domain.Agreement, error)
	Get(ctx context.Context, id string) (domain.Agreement, error)
	List(ctx context.Context) ([]domain.Agreement, error)
	Finalize(ctx context.Context, agreementID, driverID string, contentOverride *string, actorID string) (FinalizeResult, error)
	LinkInspection(ctx context.Context, agreementID, inspectionID, reason, actorID string) (domain.Agreement, error)
	Sign(ctx context.Context, agreementID, token string, signaturePNG []byte) (domain.Agreement, error)
	Terminate(ctx context.Context, agreementID, reason, actorID string) (TerminateResult, error)
	Delete(ctx context.Context, agreementID, actorID string) error
}

type DriverPage struct {
	Drivers    []domain.Driver
	Page       int
	TotalPages int
}

type Drivers interface {
	Search(ctx context.Context, query string, page, pageSize int) (DriverPage, error)
}

type Documents interface {
	Attach(ctx context.Context, agreementID, fileName string, data []byte) (domain.SupportingDocument, error)
	Detach(ctx context.Context, agreementID, path string) error
	List(ctx context.Context, agreementID string) ([]domain.SupportingDocument, error)
}

// SigningContext is everything the driver-facing portal shows before the
// signature is submitted.
type SigningContext struct {
	AgreementID      string
	Content          string
	VehicleName      string
	LicensePlate     string
	DriverName       string
	OrganisationName string
}

type Signing interface {
	LoadContext(ctx context.Context, agreementID, token string) (SigningContext, error)
	Submit(ctx context.Context, agreementID, token string, signaturePNG []byte) (domain.Agreement, error)
}
