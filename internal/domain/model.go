package domain

import "time"

// Core domain models used internally. Handler request/response shapes live in
// the HTTP adapter; keep these decoupled where helpful.

type AgreementStatus string

const (
	StatusDraft            AgreementStatus = "draft"
	StatusPendingSignature AgreementStatus = "pending_signature"
	StatusSigned           AgreementStatus = "signed"
	StatusTerminated       AgreementStatus = "terminated"
)

type AgreementTemplate struct {
	ID              string
	Title           string
	ContentRichtext string
	Active          bool
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Agreement struct {
	ID                   string
	VehicleID            string
	InspectionID         string
	TemplateID           string
	Status               AgreementStatus
	FinalContentRichtext *string
	PendingDriverID      *string
	SignedByDriverID     *string
	SigningToken         *string
	TokenIssuedAt        *time.Time
	SignatureURL         *string
	SignedAt             *time.Time
	CreatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type SupportingDocument struct {
	ID          string
	AgreementID string
	Name        string
	SizeBytes   int64
	URL         string
	Path        string // storage key, needed for deletion
	UploadedAt  time.Time
}

// Driver is a read-only projection owned by the fleet CRUD side; this core
// only selects signers from it and reads contact details for notifications.
type Driver struct {
	ID        string
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	CreatedAt time.Time
}

func (d Driver) FullName() string {
	return d.FirstName + " " + d.LastName
}

// VehicleSnapshot and InspectionSnapshot are read-only field bags used to
// build a rendering context. They are never written by this core.

type VehicleSnapshot struct {
	ID           string
	Make         string
	Model        string
	Year         int
	VIN          string
	LicensePlate string
}

func (v VehicleSnapshot) DisplayName() string {
	return v.Make + " " + v.Model
}

type InspectionSnapshot struct {
	ID                  string
	VehicleID           string
	Date                time.Time
	ExteriorCondition   string
	InteriorCondition   string
	MechanicalCondition string
	InspectorName       string
	Notes               string
}

type AuditEntry struct {
	ID         string
	Action     string // create|finalize|link_inspection|sign|terminate|delete
	EntityType string
	EntityID   string
	ActorID    string
	Detail     string
	CreatedAt  time.Time
}
