package documents

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

// Service manages supporting document references on an agreement. Documents
// are mutable only while the agreement has not been signed or terminated; the
// repository enforces that in the same statement that mutates the row.
type Service struct {
	docs    ports.DocumentRepository
	storage ports.Storage
}

func New(docs ports.DocumentRepository, storage ports.Storage) *Service {
	return &Service{docs: docs, storage: storage}
}

func (s *Service) Attach(ctx context.Context, agreementID, fileName string, data []byte) (domain.SupportingDocument, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return domain.SupportingDocument{}, domain.Errf(domain.KindValidation, "file name is required")
	}
	if len(data) == 0 {
		return domain.SupportingDocument{}, domain.Errf(domain.KindValidation, "file is empty")
	}
	id := uuid.NewString()
	path := fmt.Sprintf("agreements/%s/supporting/%s%s", agreementID, id, filepath.Ext(fileName))
	url, err := s.storage.Upload(ctx, data, path)
	if err != nil {
		return domain.SupportingDocument{}, fmt.Errorf("upload supporting document: %w", err)
	}
	doc, err := s.docs.AttachDocument(ctx, domain.SupportingDocument{
		ID:          id,
		AgreementID: agreementID,
		Name:        fileName,
		SizeBytes:   int64(len(data)),
		URL:         url,
		Path:        path,
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		// The agreement refused the reference; don't leave the object behind.
		if derr := s.storage.Delete(ctx, path); derr != nil {
			log.Printf("orphaned supporting document %s: %v", path, derr)
		}
		return domain.SupportingDocument{}, err
	}
	return doc, nil
}

// Detach removes the reference first and deletes the stored object after.
// Storage cleanup is best-effort: a failed delete is logged, never surfaced,
// so the document list stays consistent with what the operator sees.
func (s *Service) Detach(ctx context.Context, agreementID, path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.Errf(domain.KindValidation, "document path is required")
	}
	doc, err := s.docs.DetachDocument(ctx, agreementID, path)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, doc.Path); err != nil {
		log.Printf("storage delete failed for %s: %v", doc.Path, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, agreementID string) ([]domain.SupportingDocument, error) {
	return s.docs.ListDocuments(ctx, agreementID)
}
