package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
)

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores the multipart "file" field under the "path" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit := h.uploadService.MaxBytes()

	// Leave room for the multipart envelope and the path field.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		return
	}

	path := r.FormValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PATH", "path is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeServiceError(w, r, err, "read upload")
		return
	}

	url, err := h.uploadService.Upload(r.Context(), userID, path, data)
	if err != nil {
		writeServiceError(w, r, err, "upload")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}
