// Package agreements owns the agreement lifecycle: creation, content
// finalisation, signing and termination. All status transitions go through
// conditional repository writes so overlapping requests cannot both succeed
// against the same prior state.
package agreements

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/mail"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
	"github.com/tonglam/vehicle-track-sub000/internal/render"
)

// Options is injected configuration; the service never reads ambient globals.
type Options struct {
	OrgName       string
	PortalBaseURL string
	// TokenTTL bounds how long a signing token stays usable. Zero disables
	// expiry.
	TokenTTL time.Duration
}

type Service struct {
	agreements ports.AgreementRepository
	templates  ports.TemplateRepository
	drivers    ports.DriverDirectory
	snapshots  ports.SnapshotReader
	docs       ports.DocumentRepository
	storage    ports.Storage
	mailer     ports.Mailer
	audit      ports.AuditLog
	opts       Options
}

func New(agreements ports.AgreementRepository, templates ports.TemplateRepository, drivers ports.DriverDirectory,
	snapshots ports.SnapshotReader, docs ports.DocumentRepository, storage ports.Storage,
	mailer ports.Mailer, audit ports.AuditLog, opts Options) *Service {
	return &Service{
		agreements: agreements,
		templates:  templates,
		drivers:    drivers,
		snapshots:  snapshots,
		docs:       docs,
		storage:    storage,
		mailer:     mailer,
		audit:      audit,
		opts:       opts,
	}
}

func (s *Service) Create(ctx context.Context, vehicleID, inspectionID, templateID, actorID string) (domain.Agreement, error) {
	if vehicleID == "" || inspectionID == "" || templateID == "" {
		return domain.Agreement{}, domain.Errf(domain.KindValidation, "vehicleId, inspectionId and templateId are required")
	}
	tpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if !tpl.Active || strings.TrimSpace(tpl.Title) == "" || strings.TrimSpace(tpl.ContentRichtext) == "" {
		return domain.Agreement{}, domain.Errf(domain.KindValidation, "template %s is not usable for new agreements", templateID)
	}
	insp, err := s.snapshots.GetInspection(ctx, inspectionID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if insp.VehicleID != vehicleID {
		return domain.Agreement{}, domain.Errf(domain.KindIntegrity, "inspection does not match selected vehicle")
	}
	now := time.Now().UTC()
	a, err := s.agreements.CreateAgreement(ctx, domain.Agreement{
		ID:           uuid.NewString(),
		VehicleID:    vehicleID,
		InspectionID: inspectionID,
		TemplateID:   templateID,
		Status:       domain.StatusDraft,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Agreement{}, err
	}
	s.recordAudit(ctx, "create", a.ID, actorID, "")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Agreement, error) {
	return s.agreements.GetAgreement(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Agreement, error) {
	return s.agreements.ListAgreements(ctx)
}

// Finalize freezes the agreement content, issues a fresh single-use signing
// token and emails the driver a signing link. Re-finalizing an agreement that
// is already pending simply re-issues the token; any previous link dies with
// the superseded token. The email is sent only after the transition has
// committed, and a send failure is reported as a warning, never rolled back.
func (s *Service) Finalize(ctx context.Context, agreementID, driverID string, contentOverride *string, actorID string) (ports.FinalizeResult, error) {
	a, err := s.agreements.GetAgreement(ctx, agreementID)
	if err != nil {
		return ports.FinalizeResult{}, err
	}
	driver, err := s.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return ports.FinalizeResult{}, err
	}
	vehicle, err := s.snapshots.GetVehicle(ctx, a.VehicleID)
	if err != nil {
		return ports.FinalizeResult{}, err
	}

	var frozen string
	if contentOverride != nil && strings.TrimSpace(*contentOverride) != "" {
		frozen = *contentOverride
	} else {
		tpl, err := s.templates.GetTemplate(ctx, a.TemplateID)
		if err != nil {
			return ports.FinalizeResult{}, err
		}
		insp, err := s.snapshots.GetInspection(ctx, a.InspectionID)
		if err != nil {
			return ports.FinalizeResult{}, err
		}
		frozen = render.Render(tpl.ContentRichtext, render.NewContext(s.opts.OrgName, vehicle, insp))
	}

	token, err := newSigningToken()
	if err != nil {
		return ports.FinalizeResult{}, fmt.Errorf("issue signing token: %w", err)
	}
	a, err = s.agreements.Finalize(ctx, ports.FinalizeParams{
		AgreementID:   agreementID,
		DriverID:      driverID,
		FrozenContent: frozen,
		SigningToken:  token,
		TokenIssuedAt: time.Now().UTC(),
	})
	if err != nil {
		return ports.FinalizeResult{}, err
	}
	s.recordAudit(ctx, "finalize", a.ID, actorID, "driver "+driverID)

	res := ports.FinalizeResult{Agreement: a}
	if driver.Email == nil || *driver.Email == "" {
		res.DeliveryWarning = "driver has no email address; share the signing link manually"
		return res, nil
	}
	msg := mail.SigningInvite(s.opts.OrgName, driver.FullName(), vehicle.DisplayName(), s.signingURL(a.ID, token))
	if err := s.mailer.Send(ctx, *driver.Email, msg.Subject, msg.HTML, msg.Text); err != nil {
		log.Printf("signing invite for agreement %s not delivered: %v", a.ID, err)
		res.DeliveryWarning = domain.Wrap(domain.KindDelivery, err, "signing invite email failed; re-finalise to resend").Error()
	}
	return res, nil
}

// LinkInspection repoints a not-yet-signed agreement at another inspection of
// the same vehicle. Frozen content is not re-rendered; the operator must
// re-finalise for that.
func (s *Service) LinkInspection(ctx context.Context, agreementID, inspectionID, reason, actorID string) (domain.Agreement, error) {
	a, err := s.agreements.GetAgreement(ctx, agreementID)
	if err != nil {
		return domain.Agreement{}, err
	}
	insp, err := s.snapshots.GetInspection(ctx, inspectionID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if insp.VehicleID != a.VehicleID {
		return domain.Agreement{}, domain.Errf(domain.KindIntegrity, "inspection does not match selected vehicle")
	}
	a, err = s.agreements.LinkInspection(ctx, agreementID, inspectionID)
	if err != nil {
		return domain.Agreement{}, err
	}
	s.recordAudit(ctx, "link_inspection", a.ID, actorID, reason)
	return a, nil
}

// Sign commits the signature against a live token. The repository conditions
// the update on (status, token) in one statement, so of two concurrent
// submissions exactly one wins and the loser gets an invalid-token error.
func (s *Service) Sign(ctx context.Context, agreementID, token string, signaturePNG []byte) (domain.Agreement, error) {
	if token == "" || len(signaturePNG) == 0 {
		return domain.Agreement{}, domain.Errf(domain.KindInvalidToken, "signing token is not valid")
	}
	path := fmt.Sprintf("agreements/%s/signature-%s.png", agreementID, uuid.NewString())
	url, err := s.storage.Upload(ctx, signaturePNG, path)
	if err != nil {
		return domain.Agreement{}, fmt.Errorf("store signature image: %w", err)
	}
	p := ports.SignParams{
		AgreementID:  agreementID,
		SigningToken: token,
		SignatureURL: url,
		SignedAt:     time.Now().UTC(),
	}
	if s.opts.TokenTTL > 0 {
		p.TokenNotBefore = time.Now().UTC().Add(-s.opts.TokenTTL)
	}
	a, err := s.agreements.Sign(ctx, p)
	if err != nil {
		if derr := s.storage.Delete(ctx, path); derr != nil {
			log.Printf("orphaned signature image %s: %v", path, derr)
		}
		return domain.Agreement{}, err
	}
	actor := ""
	if a.SignedByDriverID != nil {
		actor = *a.SignedByDriverID
	}
	s.recordAudit(ctx, "sign", a.ID, actor, "")
	return a, nil
}

// Terminate ends a pending or signed agreement. Terminating an already
// terminated agreement is a no-op success so boundary retries stay simple.
func (s *Service) Terminate(ctx context.Context, agreementID, reason, actorID string) (ports.TerminateResult, error) {
	a, already, err := s.agreements.Terminate(ctx, agreementID)
	if err != nil {
		return ports.TerminateResult{}, err
	}
	if already {
		return ports.TerminateResult{Agreement: a}, nil
	}
	s.recordAudit(ctx, "terminate", a.ID, actorID, reason)

	res := ports.TerminateResult{Agreement: a}
	driverID := a.SignedByDriverID
	if driverID == nil {
		driverID = a.PendingDriverID
	}
	if driverID == nil {
		return res, nil
	}
	driver, err := s.drivers.GetDriver(ctx, *driverID)
	if err != nil || driver.Email == nil || *driver.Email == "" {
		return res, nil
	}
	vehicleName := a.VehicleID
	if vehicle, verr := s.snapshots.GetVehicle(ctx, a.VehicleID); verr == nil {
		vehicleName = vehicle.DisplayName()
	}
	msg := mail.TerminationNotice(s.opts.OrgName, driver.FullName(), vehicleName, reason)
	if err := s.mailer.Send(ctx, *driver.Email, msg.Subject, msg.HTML, msg.Text); err != nil {
		log.Printf("termination notice for agreement %s not delivered: %v", a.ID, err)
		res.DeliveryWarning = domain.Wrap(domain.KindDelivery, err, "termination notice email failed").Error()
	}
	return res, nil
}

// Delete removes an agreement in any status. Supporting document rows cascade
// in the database; their stored objects and the signature image are cleaned
// up best-effort afterwards.
func (s *Service) Delete(ctx context.Context, agreementID, actorID string) error {
	if _, err := s.agreements.GetAgreement(ctx, agreementID); err != nil {
		return err
	}
	docs, err := s.docs.ListDocuments(ctx, agreementID)
	if err != nil {
		return err
	}
	if err := s.agreements.DeleteAgreement(ctx, agreementID); err != nil {
		return err
	}
	for _, d := range docs {
		if err := s.storage.Delete(ctx, d.Path); err != nil {
			log.Printf("storage delete failed for %s: %v", d.Path, err)
		}
	}
	s.recordAudit(ctx, "delete", agreementID, actorID, "")
	return nil
}

func (s *Service) signingURL(agreementID, token string) string {
	return fmt.Sprintf("%s/sign/%s?token=%s", strings.TrimRight(s.opts.PortalBaseURL, "/"), agreementID, token)
}

func (s *Service) recordAudit(ctx context.Context, action, agreementID, actorID, detail string) {
	err := s.audit.Record(ctx, domain.AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: "agreement",
		EntityID:   agreementID,
		ActorID:    actorID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("audit record (%s %s) failed: %v", action, agreementID, err)
	}
}

// newSigningToken returns an unguessable single-use secret.
func newSigningToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
