package web

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vbonduro/renocheck/internal/checklist"
)

const maxAttachmentSize = 50 * 1024 * 1024 // 50 MB

// allowedMediaTypes is the set of MIME types accepted for attachments.
// net/http.DetectContentType handles JPEG, PNG, GIF, MP4 and WebM via
// magic-byte sniffing. WebP is detected separately because the WHATWG
// sniffing algorithm (and therefore the stdlib) has no WebP signature.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"video/mp4":  true,
	"video/webm": true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedMediaMIME returns the detected MIME type and true if the data is an
// accepted photo or video format, or ("", false) otherwise.
func allowedMediaMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedMediaTypes[mime] {
		return mime, true
	}
	return "", false
}

// handleCreateAttachment turns an uploaded file into an inline attachment the
// client can place in a section patch. Nothing is stored until the section is
// saved.
func (s *Server) handleCreateAttachment(w http.ResponseWriter, r *http.Request) {
	id := checklist.SectionID(chi.URLParam(r, "sectionID"))
	if !id.Valid() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown section %q", id))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize+1<<20)
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		s.logger.Error("read upload failed", "section", id, "error", err)
		return
	}

	mimeType, ok := allowedMediaMIME(data)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported media format")
		return
	}

	writeJSON(w, http.StatusCreated, checklist.Attachment{
		ID:   uuid.NewString(),
		Data: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	objectPath := chi.URLParam(r, "*")
	reader, mimeType, err := s.files.Open(r.Context(), objectPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "file reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write file failed", "path", objectPath, "error", err)
	}
}
