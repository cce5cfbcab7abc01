package httpapi

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/credkit/binder"
	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/svc/resume"
)

type (
	visibilityRequest struct {
		IsPublic *bool `json:"is_public"`
	}

	documentList struct {
		Resumes []*resume.Document `json:"resumes"`
		Total   int                `json:"total"`
	}
)

// POST /resume/upload
//
// Multipart form: "file" (required) and "is_public" (optional bool).
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		h.fail(w, r, core.ErrUnauthorized)
		return
	}

	up, err := binder.File(w, r, "file", h.resumes.MaxSize())
	if err != nil {
		h.fail(w, r, bindError(err))
		return
	}

	public := false
	if v := r.FormValue("is_public"); v != "" {
		public, err = strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, core.ValidationError{"is_public": {"must be a boolean"}})
			return
		}
	}

	d, err := h.resumes.Upload(r.Context(), *p, resume.UploadInput{
		Name:        up.Filename,
		ContentType: up.ContentType(),
		Data:        up.Content,
		Public:      public,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, core.JSONResponse{Message: "Resume uploaded.", Data: d})
}

// GET /resume/list
func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		h.fail(w, r, core.ErrUnauthorized)
		return
	}

	docs, err := h.resumes.List(r.Context(), *p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: documentList{Resumes: docs, Total: len(docs)}})
}

// GET /resume/{resume_id}
func (h *handler) document(w http.ResponseWriter, r *http.Request) {
	d, err := h.resumes.Get(r.Context(), principal(r), chi.URLParam(r, "resume_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: d})
}

// GET /resume/download/{resume_id}
func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	d, data, err := h.resumes.Download(r.Context(), principal(r), chi.URLParam(r, "resume_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", d.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.OriginalName}))
	hdr.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DELETE /resume/{resume_id}
func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		h.fail(w, r, core.ErrUnauthorized)
		return
	}

	if err := h.resumes.Delete(r.Context(), *p, chi.URLParam(r, "resume_id")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Message: "Resume deleted."})
}

// PATCH /resume/{resume_id}/visibility
func (h *handler) setVisibility(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		h.fail(w, r, core.ErrUnauthorized)
		return
	}

	var req visibilityRequest
	if !h.bind(w, r, &req) {
		return
	}
	if req.IsPublic == nil {
		h.fail(w, r, core.ValidationError{"is_public": {"is required"}})
		return
	}

	d, err := h.resumes.SetVisibility(r.Context(), *p, chi.URLParam(r, "resume_id"), *req.IsPublic)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: d})
}
