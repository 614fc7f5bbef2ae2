package handlers

import (
	"io"
	"net/http"

	"github.com/ternarybob/aptus/internal/services/ingest"
	"github.com/ternarybob/arbor"
)

// UploadHandler accepts resume uploads and hands them to the ingest router.
type UploadHandler struct {
	ingest *ingest.Service
	logger arbor.ILogger
}

// NewUploadHandler creates the upload handler
func NewUploadHandler(ingest *ingest.Service, logger arbor.ILogger) *UploadHandler {
	return &UploadHandler{ingest: ingest, logger: logger}
}

// multipartMemory caps the in-memory portion of a parsed form; the rest
// spills to temp files.
const multipartMemory = 16 << 20

// UploadHandler handles POST /api/resumes/upload with a multipart "file"
// field. Responds 202 with the tracker to poll.
func (h *UploadHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Expected multipart form upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing \"file\" form field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	result, err := h.ingest.Upload(r.Context(), data, header.Filename)
	if err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Upload rejected")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, result)
}
