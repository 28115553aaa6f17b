package bill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bellwood/bill-analyst/internal/extraction"
)

// maxUploadSize bounds multipart uploads (high-resolution phone photos
// can be large).
const maxUploadSize = int64(50 << 20) // 50MB

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(appCSS)
}

func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleExtract accepts a bill image upload and runs extraction
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		if err.Error() == "http: request body too large" {
			message = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, message)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	// Per-upload-action identifier; the client generates one per file
	// selection so re-selecting the same file is a distinct upload.
	uploadID := r.FormValue("upload_id")
	if uploadID == "" {
		uploadID = uuid.New().String()
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)

	record, err := s.service.ProcessUpload(sess, uploadID, data, contentType)
	if err != nil {
		status := http.StatusBadGateway
		var extractionErr *extraction.ExtractionError
		if errors.As(err, &extractionErr) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// uploadContentType resolves the declared content type, falling back to
// the file extension when the browser sent none
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// handleGetBill returns the session's current bill record
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	record := sess.Bill()
	if record == nil {
		writeError(w, http.StatusNotFound, "No bill has been uploaded yet")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleClearBill removes the session's current bill
func (s *Server) handleClearBill(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.ClearBill()
	w.WriteHeader(http.StatusNoContent)
}

// handleExportJSON serves the bill record as a downloadable JSON artifact
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	record := sess.Bill()
	if record == nil {
		writeError(w, http.StatusNotFound, "No bill has been uploaded yet")
		return
	}

	filename, data, err := ExportJSON(record)
	if err != nil {
		slog.Error("Error exporting bill", "error", err)
		writeError(w, http.StatusInternalServerError, "Error exporting bill")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// handleExportXLSX serves the bill record as a downloadable workbook
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	record := sess.Bill()
	if record == nil {
		writeError(w, http.StatusNotFound, "No bill has been uploaded yet")
		return
	}

	filename, data, err := ExportXLSX(record)
	if err != nil {
		slog.Error("Error exporting bill workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "Error exporting bill")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// handleGetTranscript returns the session's chat transcript
func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, sess.Messages())
}

// handleChat appends a user message, queries the assistant and returns
// the reply. Query failures surface as a normal assistant message, so
// this handler never reports an assistant error status.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply := s.service.Ask(sess, req.Message)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply":      reply,
		"transcript": sess.Messages(),
	})
}
