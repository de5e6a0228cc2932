package documents

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

// fakeDocs enforces the owning agreement's status the way the Postgres
// adapter does, so the guard is exercised end to end.
type fakeDocs struct {
	mu     sync.Mutex
	status map[string]domain.AgreementStatus
	docs   map[string][]domain.SupportingDocument
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{status: map[string]domain.AgreementStatus{}, docs: map[string][]domain.SupportingDocument{}}
}

func (f *fakeDocs) AttachDocument(_ context.Context, d domain.SupportingDocument) (domain.SupportingDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.status[d.AgreementID]
	if !ok {
		return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "agreement %s not found", d.AgreementID)
	}
	if st == domain.StatusSigned || st == domain.StatusTerminated {
		return domain.SupportingDocument{}, domain.Errf(domain.KindImmutableState, "documents cannot change on a %s agreement", st)
	}
	f.docs[d.AgreementID] = append(f.docs[d.AgreementID], d)
	return d, nil
}

func (f *fakeDocs) DetachDocument(_ context.Context, agreementID, path string) (domain.SupportingDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.status[agreementID]
	if !ok {
		return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "agreement %s not found", agreementID)
	}
	if st == domain.StatusSigned || st == domain.StatusTerminated {
		return domain.SupportingDocument{}, domain.Errf(domain.KindImmutableState, "documents cannot change on a %s agreement", st)
	}
	for i, d := range f.docs[agreementID] {
		if d.Path == path {
			f.docs[agreementID] = append(f.docs[agreementID][:i], f.docs[agreementID][i+1:]...)
			return d, nil
		}
	}
	return domain.SupportingDocument{}, domain.Errf(domain.KindNotFound, "supporting document not found")
}

func (f *fakeDocs) ListDocuments(_ context.Context, agreementID string) ([]domain.SupportingDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SupportingDocument(nil), f.docs[agreementID]...), nil
}

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
	failDel bool
}

func (s *fakeStorage) Upload(_ context.Context, data []byte, path string) (string, error) {
	s.objects[path] = data
	return "https://files.example/" + path, nil
}

func (s *fakeStorage) Delete(_ context.Context, path string) error {
	if s.failDel {
		return errors.New("storage unavailable")
	}
	delete(s.objects, path)
	s.deleted = append(s.deleted, path)
	return nil
}

func setup(status domain.AgreementStatus) (*Service, *fakeDocs, *fakeStorage) {
	docs := newFakeDocs()
	docs.status["a1"] = status
	storage := &fakeStorage{objects: map[string][]byte{}}
	return New(docs, storage), docs, storage
}

func TestAttachAndDetach(t *testing.T) {
	svc, repo, storage := setup(domain.StatusDraft)

	doc, err := svc.Attach(context.Background(), "a1", "rego.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "rego.pdf", doc.Name)
	assert.Equal(t, int64(3), doc.SizeBytes)
	assert.Contains(t, doc.Path, "a1/supporting/")
	assert.Contains(t, storage.objects, doc.Path)

	require.NoError(t, svc.Detach(context.Background(), "a1", doc.Path))
	assert.Empty(t, repo.docs["a1"])
	assert.NotContains(t, storage.objects, doc.Path)
}

func TestMutationGuard(t *testing.T) {
	for _, status := range []domain.AgreementStatus{domain.StatusSigned, domain.StatusTerminated} {
		svc, _, storage := setup(status)

		_, err := svc.Attach(context.Background(), "a1", "rego.pdf", []byte("pdf"))
		assert.True(t, domain.IsKind(err, domain.KindImmutableState), "attach on %s", status)
		assert.Empty(t, storage.objects, "rejected upload must not linger in storage")

		err = svc.Detach(context.Background(), "a1", "some/path")
		assert.True(t, domain.IsKind(err, domain.KindImmutableState), "detach on %s", status)
	}
}

func TestMutationAllowedBeforeSigning(t *testing.T) {
	for _, status := range []domain.AgreementStatus{domain.StatusDraft, domain.StatusPendingSignature} {
		svc, _, _ := setup(status)
		_, err := svc.Attach(context.Background(), "a1", "rego.pdf", []byte("pdf"))
		assert.NoError(t, err, "attach on %s", status)
	}
}

func TestDetachSurvivesStorageFailure(t *testing.T) {
	svc, repo, storage := setup(domain.StatusDraft)
	doc, err := svc.Attach(context.Background(), "a1", "rego.pdf", []byte("pdf"))
	require.NoError(t, err)

	storage.failDel = true
	require.NoError(t, svc.Detach(context.Background(), "a1", doc.Path),
		"storage cleanup is best-effort and must not fail the detach")
	assert.Empty(t, repo.docs["a1"], "reference removed despite storage failure")
}

func TestAttachValidation(t *testing.T) {
	svc, _, _ := setup(domain.StatusDraft)
	_, err := svc.Attach(context.Background(), "a1", "  ", []byte("pdf"))
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	_, err = svc.Attach(context.Background(), "a1", "rego.pdf", nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}
