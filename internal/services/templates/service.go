package templates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

type Service struct {
	repo ports.TemplateRepository
}

func New(repo ports.TemplateRepository) *Service { return &Service{repo: repo} }

func (s *Service) Create(ctx context.Context, title, content string, active bool, actorID string) (domain.AgreementTemplate, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindValidation, "template title is required")
	}
	if strings.TrimSpace(content) == "" {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindValidation, "template content is required")
	}
	now := time.Now().UTC()
	return s.repo.CreateTemplate(ctx, domain.AgreementTemplate{
		ID:              uuid.NewString(),
		Title:           title,
		ContentRichtext: content,
		Active:          active,
		CreatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) Get(ctx context.Context, id string) (domain.AgreementTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *Service) Update(ctx context.Context, id, title, content string, active bool, actorID string) (domain.AgreementTemplate, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindValidation, "template title and content are required")
	}
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return domain.AgreementTemplate{}, err
	}
	t.Title = title
	t.ContentRichtext = content
	t.Active = active
	t.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateTemplate(ctx, t)
}

func (s *Service) ListActive(ctx context.Context) ([]domain.AgreementTemplate, error) {
	return s.repo.ListActiveTemplates(ctx)
}
