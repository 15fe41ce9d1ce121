package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"ecojourney/internal/app"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/store"
)

// /api/content
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateContent(w, r, user)
	case http.MethodGet:
		s.handleListContent(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// /api/content/{id} and subresources
func (s *Server) handleContentByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/content/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "download":
			s.handleDownload(w, r, user, id)
		case "versions":
			s.handleVersions(w, r, user, id)
		case "submit":
			s.handleSubmit(w, r, user, id)
		case "review":
			s.handleReview(w, r, user, id)
		case "publish":
			s.handlePublish(w, r, user, id)
		case "archive":
			s.handleArchive(w, r, user, id)
		case "workflow":
			s.handleWorkflow(w, r, user, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, err := s.app.GetContent(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	case http.MethodPatch:
		s.handleUpdateContent(w, r, user, id)
	case http.MethodDelete:
		if err := s.app.DeleteContent(r.Context(), user, id); err != nil {
			s.audit(r, "api.content.delete", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
			writeAppError(w, err)
			return
		}
		s.audit(r, "api.content.delete", "success", "user_id", user.ID, "content_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	in := app.CreateContentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Type:        domain.ContentType(strings.ToLower(strings.TrimSpace(r.FormValue("type")))),
		CategoryID:  strings.TrimSpace(r.FormValue("categoryId")),
		Tags:        r.FormValue("tags"),
		File:        uploadFromPart(file, fileHeader),
	}
	if thumb, thumbHeader, err := r.FormFile("thumbnail"); err == nil {
		defer thumb.Close()
		in.Thumbnail = uploadFromPart(thumb, thumbHeader)
	}

	content, err := s.app.CreateContent(r.Context(), user, in)
	if err != nil {
		s.audit(r, "api.content.create", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.content.create", "success", "user_id", user.ID, "content_id", content.ID)
	writeJSON(w, http.StatusCreated, content)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request, user domain.User) {
	q := r.URL.Query()
	filter := store.ContentFilter{
		Status:          domain.ContentStatus(strings.TrimSpace(q.Get("status"))),
		CategoryID:      strings.TrimSpace(q.Get("category")),
		IncludeArchived: q.Get("includeArchived") == "true",
	}
	items, err := s.app.ListContent(user, filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	var in app.UpdateContentInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		if v, ok := formValue(r, "title"); ok {
			in.Title = &v
		}
		if v, ok := formValue(r, "description"); ok {
			in.Description = &v
		}
		if v, ok := formValue(r, "categoryId"); ok {
			in.CategoryID = &v
		}
		if v, ok := formValue(r, "tags"); ok {
			in.Tags = &v
		}
		in.ChangeLog = r.FormValue("changeLog")
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			in.File = uploadFromPart(file, header)
		}
	} else {
		var req updateContentRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		in.Title = req.Title
		in.Description = req.Description
		in.CategoryID = req.CategoryID
		in.Tags = req.Tags
		in.ChangeLog = req.ChangeLog
	}

	content, err := s.app.UpdateContent(r.Context(), user, id, in)
	if err != nil {
		s.audit(r, "api.content.update", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.content.update", "success", "user_id", user.ID, "content_id", id)
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, err := s.app.DownloadURL(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	versions, err := s.app.ListVersions(user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": versions,
		"count": len(versions),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	content, err := s.app.Submit(user, id, req.Notes)
	if err != nil {
		s.audit(r, "api.workflow.submit", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.workflow.submit", "success", "user_id", user.ID, "content_id", id)
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	decision := domain.WorkflowStatus(strings.ToLower(strings.TrimSpace(req.Decision)))
	content, err := s.app.Review(user, id, decision, req.Feedback)
	if err != nil {
		s.audit(r, "api.workflow.review", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.workflow.review", "success", "user_id", user.ID, "content_id", id, "decision", string(decision))
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	content, err := s.app.Publish(user, id)
	if err != nil {
		s.audit(r, "api.workflow.publish", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.workflow.publish", "success", "user_id", user.ID, "content_id", id)
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	content, err := s.app.Archive(user, id)
	if err != nil {
		s.audit(r, "api.workflow.archive", "fail", "user_id", user.ID, "content_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.workflow.archive", "success", "user_id", user.ID, "content_id", id)
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	workflow, err := s.app.GetWorkflow(user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflow)
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	workflows, err := s.app.PendingApprovals(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": workflows,
		"count": len(workflows),
	})
}

// /api/categories
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.app.ListCategories()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": categories,
			"count": len(categories),
		})
	case http.MethodPost:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		category, err := s.app.CreateCategory(user, app.CategoryInput{
			Name:        domain.CategoryName(strings.ToLower(strings.TrimSpace(req.Name))),
			Description: req.Description,
			ColorCode:   req.ColorCode,
			Active:      req.Active,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		methodNotAllowed(w)
	}
}

// /api/categories/{id}
func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		category, err := s.app.UpdateCategory(user, id, app.CategoryInput{
			Name:        domain.CategoryName(strings.ToLower(strings.TrimSpace(req.Name))),
			Description: req.Description,
			ColorCode:   req.ColorCode,
			Active:      req.Active,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, category)
	case http.MethodDelete:
		if err := s.app.DeleteCategory(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type updateContentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CategoryID  *string `json:"categoryId"`
	Tags        *string `json:"tags"`
	ChangeLog   string  `json:"changeLog"`
}

type submitRequest struct {
	Notes string `json:"notes"`
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ColorCode   string `json:"colorCode"`
	Active      *bool  `json:"active"`
}

func uploadFromPart(file multipart.File, header *multipart.FileHeader) *app.Upload {
	return &app.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}
}

func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	vals, ok := r.MultipartForm.Value[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
