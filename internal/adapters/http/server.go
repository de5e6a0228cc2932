package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

const maxUploadBytes = 10 << 20

// Server exposes the agreement lifecycle over HTTP. Authentication is an
// out-of-scope collaborator: the actor id arrives in the X-Actor-Id header,
// already authorized upstream.
type Server struct {
	templates  ports.Templates
	agreements ports.Agreements
	drivers    ports.Drivers
	documents  ports.Documents
	signing    ports.Signing
}

func New(templates ports.Templates, agreements ports.Agreements, drivers ports.Drivers,
	documents ports.Documents, signing ports.Signing) *Server {
	return &Server{templates: templates, agreements: agreements, drivers: drivers,
		documents: documents, signing: signing}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", s.handleCreateTemplate)
		r.Get("/", s.handleListTemplates)
		r.Get("/{id}", s.handleGetTemplate)
		r.Put("/{id}", s.handleUpdateTemplate)
	})

	r.Get("/drivers", s.handleSearchDrivers)

	r.Route("/agreements", func(r chi.Router) {
		r.Post("/", s.handleCreateAgreement)
		r.Get("/", s.handleListAgreements)
		r.Get("/{id}", s.handleGetAgreement)
		r.Patch("/{id}/inspection", s.handleLinkInspection)
		r.Post("/{id}/finalise", s.handleFinalize)
		r.Post("/{id}/sign", s.handleSign)
		r.Post("/{id}/terminate", s.handleTerminate)
		r.Delete("/{id}", s.handleDeleteAgreement)
		r.Post("/{id}/supporting", s.handleAttachDocument)
		r.Delete("/{id}/supporting", s.handleDetachDocument)
		r.Get("/{id}/signing", s.handleSigningContext)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Templates

type templateRequest struct {
	Title           string `json:"title"`
	ContentRichtext string `json:"contentRichtext"`
	Active          bool   `json:"active"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.templates.Create(r.Context(), req.Title, req.ContentRichtext, req.Active, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, templateJSON(t))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.templates.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, templateJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.templates.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templateJSON(t))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.templates.Update(r.Context(), id, req.Title, req.ContentRichtext, req.Active, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templateJSON(t))
}

// Drivers

func (s *Server) handleSearchDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	res, err := s.drivers.Search(r.Context(), q.Get("query"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(res.Drivers))
	for _, d := range res.Drivers {
		out = append(out, map[string]any{
			"id":        d.ID,
			"firstName": d.FirstName,
			"lastName":  d.LastName,
			"email":     d.Email,
			"phone":     d.Phone,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drivers":    out,
		"page":       res.Page,
		"totalPages": res.TotalPages,
	})
}

// Agreements

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req struct {
		VehicleID    string `json:"vehicleId"`
		InspectionID string `json:"inspectionId"`
		TemplateID   string `json:"templateId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !validUUIDs(w, req.VehicleID, req.InspectionID, req.TemplateID) {
		return
	}
	a, err := s.agreements.Create(r.Context(), req.VehicleID, req.InspectionID, req.TemplateID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"agreement": agreementJSON(a)})
}

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	as, err := s.agreements.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(as))
	for _, a := range as {
		out = append(out, agreementJSON(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agreements": out})
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.agreements.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := s.documents.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	docsOut := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		docsOut = append(docsOut, documentJSON(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agreement":           agreementJSON(a),
		"supportingDocuments": docsOut,
	})
}

func (s *Server) handleLinkInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		InspectionID string `json:"inspectionId"`
		Reason       string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !validUUIDs(w, req.InspectionID) {
		return
	}
	a, err := s.agreements.LinkInspection(r.Context(), id, req.InspectionID, req.Reason, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agreement": agreementJSON(a)})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		DriverID string  `json:"driverId"`
		Content  *string `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !validUUIDs(w, req.DriverID) {
		return
	}
	res, err := s.agreements.Finalize(r.Context(), id, req.DriverID, req.Content, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"agreement": agreementJSON(res.Agreement)}
	if res.DeliveryWarning != "" {
		body["warning"] = res.DeliveryWarning
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Token     string `json:"token"`
		Signature string `json:"signature"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	// Malformed ids get the same answer as bad tokens: the portal never
	// confirms what exists.
	if uuid.Validate(id) != nil {
		writeError(w, domain.Errf(domain.KindInvalidToken, "signing token is not valid"))
		return
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		writeError(w, domain.Errf(domain.KindValidation, "signature image is not valid base64"))
		return
	}
	a, err := s.signing.Submit(r.Context(), id, req.Token, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agreement": agreementJSON(a)})
}

func (s *Server) handleSigningContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	if uuid.Validate(id) != nil {
		writeError(w, domain.Errf(domain.KindInvalidToken, "signing token is not valid"))
		return
	}
	sc, err := s.signing.LoadContext(r.Context(), id, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agreementId":  sc.AgreementID,
		"content":      sc.Content,
		"vehicleName":  sc.VehicleName,
		"licensePlate": sc.LicensePlate,
		"driverName":   sc.DriverName,
		"organisation": sc.OrganisationName,
	})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := s.agreements.Terminate(r.Context(), id, req.Reason, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"agreement": agreementJSON(res.Agreement)}
	if res.DeliveryWarning != "" {
		body["warning"] = res.DeliveryWarning
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.agreements.Delete(r.Context(), id, actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Supporting documents

func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorID(w, r); !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, domain.Errf(domain.KindValidation, "expected multipart form with a file field"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.Errf(domain.KindValidation, "file field is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, domain.Errf(domain.KindValidation, "file exceeds the %d byte limit", maxUploadBytes))
		return
	}
	doc, err := s.documents.Attach(r.Context(), id, header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":      doc.URL,
		"path":     doc.Path,
		"fileName": doc.Name,
		"fileSize": doc.SizeBytes,
	})
}

func (s *Server) handleDetachDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorID(w, r); !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.documents.Detach(r.Context(), id, req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Helpers

func templateJSON(t domain.AgreementTemplate) map[string]any {
	return map[string]any{
		"id":              t.ID,
		"title":           t.Title,
		"contentRichtext": t.ContentRichtext,
		"active":          t.Active,
		"createdBy":       t.CreatedBy,
		"createdAt":       t.CreatedAt,
		"updatedAt":       t.UpdatedAt,
	}
}

// agreementJSON never exposes the signing token: the only place it may
// appear is inside the emailed signing link.
func agreementJSON(a domain.Agreement) map[string]any {
	return map[string]any{
		"id":                   a.ID,
		"vehicleId":            a.VehicleID,
		"inspectionId":         a.InspectionID,
		"templateId":           a.TemplateID,
		"status":               string(a.Status),
		"finalContentRichtext": a.FinalContentRichtext,
		"pendingDriverId":      a.PendingDriverID,
		"signedByDriverId":     a.SignedByDriverID,
		"signatureUrl":         a.SignatureURL,
		"signedAt":             a.SignedAt,
		"createdBy":            a.CreatedBy,
		"createdAt":            a.CreatedAt,
		"updatedAt":            a.UpdatedAt,
	}
}

func documentJSON(d domain.SupportingDocument) map[string]any {
	return map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"sizeBytes":  d.SizeBytes,
		"url":        d.URL,
		"path":       d.Path,
		"uploadedAt": d.UploadedAt,
	}
}

func decodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty signature")
	}
	// Accept both raw base64 and data URLs ("data:image/png;base64,...").
	if i := strings.IndexByte(s, ','); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	if actor == "" {
		writeError(w, domain.Errf(domain.KindValidation, "X-Actor-Id header is required"))
		return "", false
	}
	return actor, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if uuid.Validate(id) != nil {
		writeError(w, domain.Errf(domain.KindValidation, "%s is not a valid id", name))
		return "", false
	}
	return id, true
}

func validUUIDs(w http.ResponseWriter, ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			writeError(w, domain.Errf(domain.KindValidation, "%q is not a valid id", id))
			return false
		}
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, domain.Errf(domain.KindValidation, "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	code := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindValidation, domain.KindIntegrity:
		code = http.StatusBadRequest
	case domain.KindNotFound:
		code = http.StatusNotFound
	case domain.KindStateConflict, domain.KindImmutableState:
		code = http.StatusConflict
	case domain.KindInvalidToken:
		code = http.StatusUnauthorized
	case domain.KindDelivery:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": de.Message, "kind": string(de.Kind)})
}
