package templates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

type fakeTemplates struct {
	templates map[string]domain.AgreementTemplate
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{templates: map[string]domain.AgreementTemplate{}}
}

func (f *fakeTemplates) CreateTemplate(_ context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeTemplates) GetTemplate(_ context.Context, id string) (domain.AgreementTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", id)
	}
	return t, nil
}

func (f *fakeTemplates) UpdateTemplate(_ context.Context, t domain.AgreementTemplate) (domain.AgreementTemplate, error) {
	if _, ok := f.templates[t.ID]; !ok {
		return domain.AgreementTemplate{}, domain.Errf(domain.KindNotFound, "template %s not found", t.ID)
	}
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeTemplates) ListActiveTemplates(_ context.Context) ([]domain.AgreementTemplate, error) {
	var out []domain.AgreementTemplate
	for _, t := range f.templates {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestCreateTemplate(t *testing.T) {
	svc := New(newFakeTemplates())

	tpl, err := svc.Create(context.Background(), "  Handover Agreement  ",
		"<p>{{ vehicle.make }} {{ vehicle.model }}</p>", true, "op-1")
	require.NoError(t, err)
	assert.NoError(t, uuid.Validate(tpl.ID))
	assert.Equal(t, "Handover Agreement", tpl.Title, "title is trimmed")
	assert.True(t, tpl.Active)
	assert.Equal(t, "op-1", tpl.CreatedBy)
	assert.False(t, tpl.CreatedAt.IsZero())
}

func TestCreateTemplateValidation(t *testing.T) {
	svc := New(newFakeTemplates())

	_, err := svc.Create(context.Background(), "   ", "<p>body</p>", true, "op-1")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.Create(context.Background(), "Title", "   ", true, "op-1")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestUpdateTemplate(t *testing.T) {
	repo := newFakeTemplates()
	svc := New(repo)

	tpl, err := svc.Create(context.Background(), "Handover", "<p>v1</p>", true, "op-1")
	require.NoError(t, err)

	got, err := svc.Update(context.Background(), tpl.ID, "Handover v2", "<p>v2</p>", false, "op-2")
	require.NoError(t, err)
	assert.Equal(t, "Handover v2", got.Title)
	assert.Equal(t, "<p>v2</p>", got.ContentRichtext)
	assert.False(t, got.Active)
	assert.Equal(t, "op-1", got.CreatedBy, "authorship is immutable")

	_, err = svc.Update(context.Background(), uuid.NewString(), "Title", "<p>body</p>", true, "op-1")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestListActiveFiltersRetired(t *testing.T) {
	svc := New(newFakeTemplates())

	active, err := svc.Create(context.Background(), "Current", "<p>body</p>", true, "op-1")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Retired", "<p>body</p>", false, "op-1")
	require.NoError(t, err)

	list, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}
