// Package signing is the driver-facing, token-authenticated session that
// closes the agreement lifecycle: one read of the frozen content, one
// signature submission. Tokens are single-use write credentials, not read
// tokens — once consumed, loads fail too.
package signing

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

type Service struct {
	agreements ports.AgreementRepository
	aggregate  ports.Agreements
	drivers    ports.DriverDirectory
	snapshots  ports.SnapshotReader
	orgName    string
	tokenTTL   time.Duration
}

func New(agreements ports.AgreementRepository, aggregate ports.Agreements, drivers ports.DriverDirectory,
	snapshots ports.SnapshotReader, orgName string, tokenTTL time.Duration) *Service {
	return &Service{
		agreements: agreements,
		aggregate:  aggregate,
		drivers:    drivers,
		snapshots:  snapshots,
		orgName:    orgName,
		tokenTTL:   tokenTTL,
	}
}

// errInvalidToken is deliberately uniform: a missing agreement, a wrong
// token, a consumed token and an expired token all look the same to the
// caller, so the portal leaks nothing about what exists.
func errInvalidToken() error {
	return domain.Errf(domain.KindInvalidToken, "signing link is not valid or has already been used")
}

func (s *Service) LoadContext(ctx context.Context, agreementID, token string) (ports.SigningContext, error) {
	a, ok := s.authenticate(ctx, agreementID, token)
	if !ok {
		return ports.SigningContext{}, errInvalidToken()
	}

	out := ports.SigningContext{
		AgreementID:      a.ID,
		OrganisationName: s.orgName,
	}
	if a.FinalContentRichtext != nil {
		out.Content = *a.FinalContentRichtext
	}
	if vehicle, err := s.snapshots.GetVehicle(ctx, a.VehicleID); err == nil {
		out.VehicleName = vehicle.DisplayName()
		out.LicensePlate = vehicle.LicensePlate
	}
	if a.PendingDriverID != nil {
		if driver, err := s.drivers.GetDriver(ctx, *a.PendingDriverID); err == nil {
			out.DriverName = driver.FullName()
		}
	}
	return out, nil
}

func (s *Service) Submit(ctx context.Context, agreementID, token string, signaturePNG []byte) (domain.Agreement, error) {
	return s.aggregate.Sign(ctx, agreementID, token, signaturePNG)
}

func (s *Service) authenticate(ctx context.Context, agreementID, token string) (domain.Agreement, bool) {
	if agreementID == "" || token == "" {
		return domain.Agreement{}, false
	}
	a, err := s.agreements.GetAgreement(ctx, agreementID)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			log.Printf("signing portal load %s: %v", agreementID, err)
		}
		return domain.Agreement{}, false
	}
	if a.Status != domain.StatusPendingSignature || a.SigningToken == nil {
		return domain.Agreement{}, false
	}
	if subtle.ConstantTimeCompare([]byte(*a.SigningToken), []byte(token)) != 1 {
		return domain.Agreement{}, false
	}
	if s.tokenTTL > 0 && a.TokenIssuedAt != nil && time.Since(*a.TokenIssuedAt) > s.tokenTTL {
		return domain.Agreement{}, false
	}
	return a, true
}
