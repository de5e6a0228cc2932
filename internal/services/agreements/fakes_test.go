package agreements_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

// memStore is an in-memory stand-in for the Postgres adapter. It mirrors the
// adapter's conditional-update semantics, including the uniform invalid-token
// answer from Sign, so the service tests exercise the same contract the real
// store provides.
type memStore struct {
	mu          sync.Mutex
	agreements  map[string]domain.Agreement
	templates   map[string]domain.AgreementTemplate
	drivers     map[string]domain.Driver
	vehicles    map[string]domain.VehicleSnapshot
	inspections map[string]domain.InspectionSnapshot
	documents   map[string][]domain.SupportingDocument
	audits      []domain.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		agreements:  map[string]domain.Agreement{},
		templates:   map[string]domain.AgreementTemplate{},
		drivers:     map[string]domain.Driver{},
		vehicles:    map[string]domain.VehicleSnapshot{},
		inspections: map[string]domain.InspectionSnapshot{},
		documents:   map[string][]domain.SupportingDocument{},
	}
}

func (m *memStore) CreateAgreement(_ context.Context, a domain.Agreement) (domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agreements[a.ID] = a
	return a, nil
}

func (m *memStore) GetAgreement(_ context.Context, id string) (domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[id]
	if !ok {
		return domain.Agreement{}, domain.Errf(domain.KindNotFound, "agreement %s not found", id)
	}
	return a, nil
}

func (m *memStore) ListAgreements(_ context.Context) ([]domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Agreement, 0, len(m.agreements))
	for _, a := range m.agreements {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) Finalize(_ context.Context, p ports.FinalizeParams) (domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[p.AgreementID]
	if !ok {
		return domain.Agreement{}, domain.Errf(domain.KindNotFound, "agreement %s not found", p.AgreementID)
	}
	if a.Status != domain.StatusDraft && a.Status != domain.StatusPendingSignature {
		return domain.Agreement{}, domain.Errf(domain.KindStateConflict, "agreement cannot be finalised while %s", a.Status)
	}
	a.Status = domain.StatusPendingSignature
	a.FinalContentRichtext = &p.FrozenContent
	a.PendingDriverID = &p.DriverID
	a.SigningToken = &p.SigningToken
	issued := p.TokenIssuedAt
	a.TokenIssuedAt = &issued
	a.UpdatedAt = time.Now().UTC()
	m.agreements[a.ID] = a
	return a, nil
}

func (m *memStore) Sign(_ context.Context, p ports.SignParams) (domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[p.AgreementID]
	if !ok || a.Status != domain.StatusPendingSignature ||
		a.SigningToken == nil || *a.SigningToken != p.SigningToken {
		return domain.Agreement{}, domain.Errf(domain.KindInvalidToken, "signing token is not valid")
	}
	if !p.TokenNotBefore.IsZero() && a.TokenIssuedAt != nil && a.TokenIssuedAt.Before(p.TokenNotBefore) {
		return domain.Agreement{}, domain.Errf(domain.KindInvalidToken, "signing token is not valid")
	}
	a.Status = domain.StatusSigned
	a.SignedByDriverID = a.PendingDriverID
	a.PendingDriverID = nil
	signedAt := p.SignedAt
	a.SignedAt = &signedAt
	sigURL := p.SignatureURL
	a.SignatureURL = &sigURL
	a.SigningToken = nil
	a.TokenIssuedAt = nil
	a.UpdatedAt = time.Now().UTC()
	m.agreements[a.ID] = a
	return a, nil
}

func (m *memStore) LinkInspection(_ context.Context, agreementID, inspectionID string) (domain.Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[agreementID]
	if !ok {
		return domain.Agreement{}, domain.Errf(domain.KindNotFound, "agreement %s not found", agreementID)
	}
	if a.Status != domain.StatusDraft && a.Status != domain.StatusPendingSignature {
		return domain.Agreement{}, domain.Errf(domain.KindStateConflict, "agreement cannot be re-linked while %s", a.Status)
	}
	a.InspectionID = inspectionID
	m.agreements[a.ID] = a
	return a, nil
}

func (m *memStore) Terminate(_ context.Context, agreementID string) (domain.Agreement, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[agreementID]
	if !ok {
		return domain.Agreement{}, false, domain.Errf(domain.KindNotFound, "agreement %s not found", agreementID)
	}
	switch a.Status {
	case domain.StatusTerminated:
		return a, true, nil
	case domain.StatusPendingSignature, domain.StatusSigned:
		a.Status = domain.StatusTerminated
		a.SigningToken = nil
		a.TokenIssuedAt = nil
		m.agreements[a.ID] = a
		return a, false, nil
	default:
		return domain.Agreement{}, false, domain.Errf(domain.KindStateConflict, "agreement cannot be terminated while %s", a.Status)
	}
}

func (m *memStore) DeleteAgreement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agreements[id]; !ok {
		return domain.Errf(domain.KindNotFound, "agreement %s not found", id)
	}
	delete(m.agreements, id)
	delete(m.documents, id)
	return nil
}

func (m *memStore) CreateTemplate(_ context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return t, nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (domain.AgreementTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", id)
	}
	return t, nil
}

func (m *memStore) UpdateTemplate(_ context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", t.ID)
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *memStore) ListActiveTemplates(_ context.Context) ([]domain.AgreementTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AgreementTemplate
	for _, t := range m.templates {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetDriver(_ context.Context, id string) (domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return domain.Driver{}, domain.Errf(domain.KindNotFound, "driver %s not found", id)
	}
	return d, nil
}

func (m *memStore) SearchDrivers(_ context.Context, _ string, _, pageSize int) ([]domain.Driver, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Driver
	for _, d := range m.drivers {
		out = append(out, d)
	}
	total := (len(out) + pageSize - 1) / pageSize
	return out, total, nil
}

func (m *memStore) GetVehicle(_ context.Context, id string) (domain.VehicleSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return domain.VehicleSnapshot{}, domain.Errf(domain.KindNotFound, "vehicle %s not found", id)
	}
	return v, nil
}

func (m *memStore) GetInspection(_ context.Context, id string) (domain.InspectionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.inspections[id]
	if !ok {
		return domain.InspectionSnapshot{}, domain.Errf(domain.KindNotFound, "inspection %s not found", id)
	}
	return i, nil
}

func (m *memStore) AttachDocument(_ context.Context, d domain.SupportingDocument) (domain.SupportingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[d.AgreementID]
	if !ok {
		return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "agreement %s not found", d.AgreementID)
	}
	if a.Status == domain.StatusSigned || a.Status == domain.StatusTerminated {
		return domain.SupportingDocument{}, domain.Errf(domain.KindImmutableState, "documents cannot change on a %s agreement", a.Status)
	}
	m.documents[d.AgreementID] = append(m.documents[d.AgreementID], d)
	return d, nil
}

func (m *memStore) DetachDocument(_ context.Context, agreementID, path string) (domain.SupportingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agreements[agreementID]
	if !ok {
		return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "agreement %s not found", agreementID)
	}
	if a.Status == domain.StatusSigned || a.Status == domain.StatusTerminated {
		return domain.SupportingDocument{}, domain.Errf(domain.KindImmutableState, "documents cannot change on a %s agreement", a.Status)
	}
	docs := m.documents[agreementID]
	for i, d := range docs {
		if d.Path == path {
			m.documents[agreementID] = append(docs[:i], docs[i+1:]...)
			return d, nil
		}
	}
	return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "supporting document not found")
}

func (m *memStore) ListDocuments(_ context.Context, agreementID string) ([]domain.SupportingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SupportingDocument(nil), m.documents[agreementID]...), nil
}

func (m *memStore) Record(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, e := range m.audits {
		out = append(out, e.Action)
	}
	return out
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failDel bool
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (s *fakeStorage) Upload(_ context.Context, data []byte, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return "https://files.example/" + path, nil
}

func (s *fakeStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDel {
		return errors.New("storage unavailable")
	}
	delete(s.objects, path)
	s.deleted = append(s.deleted, path)
	return nil
}

type sentMail struct {
	to      string
	subject string
	html    string
	text    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html, text: text})
	return nil
}
