package bill

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bellwood/bill-analyst/internal/chat"
	"github.com/bellwood/bill-analyst/internal/extraction"
)

// Service orchestrates uploads, extraction and chat against a session
type Service struct {
	extractor extraction.Extractor
	assistant chat.Assistant
	sessions  *SessionStore
}

// NewService creates a new Service
func NewService(extractor extraction.Extractor, assistant chat.Assistant, sessions *SessionStore) *Service {
	return &Service{
		extractor: extractor,
		assistant: assistant,
		sessions:  sessions,
	}
}

// Sessions returns the session store
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// ProcessUpload extracts a bill from an uploaded image and stores the
// result in the session. Uploads are tracked by identity: the same
// upload identifier is not extracted twice, while identical bytes under
// a new identifier re-enter extraction and hit the content cache. On
// failure the session's bill and upload identifier are left unchanged.
func (s *Service) ProcessUpload(sess *Session, uploadID string, data []byte, contentType string) (*extraction.BillRecord, error) {
	if uploadID != "" && uploadID == sess.UploadID() && sess.Bill() != nil {
		return sess.Bill(), nil
	}

	record, err := s.extractor.ExtractBill(data, contentType)
	if err != nil {
		slog.Error("Failed to extract bill",
			"upload_id", uploadID,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("extracting bill: %w", err)
	}

	sess.ReplaceBill(record, uploadID)
	sess.Append(RoleAssistant, fmt.Sprintf("Bill from %s successfully parsed! You can now query the data or export it.", record.SellerName))
	return record, nil
}

// Ask appends the user's question to the transcript, queries the
// assistant with the current bill as grounding context (an empty object
// when no bill is present), and appends the reply. Assistant errors are
// downgraded to a user-facing message so the transcript always advances.
func (s *Service) Ask(sess *Session, userQuery string) Message {
	sess.Append(RoleUser, userQuery)

	contextJSON := "{}"
	if bill := sess.Bill(); bill != nil {
		data, err := json.MarshalIndent(bill, "", "  ")
		if err != nil {
			slog.Error("Failed to serialize bill context", "error", err)
		} else {
			contextJSON = string(data)
		}
	}

	reply, err := s.assistant.Answer(contextJSON, userQuery)
	if err != nil {
		slog.Error("Failed to generate chat response", "error", err)
		reply = fmt.Sprintf("An error occurred while generating the response: %v", err)
	}
	return sess.Append(RoleAssistant, reply)
}

// Close releases the model clients
func (s *Service) Close() error {
	if err := s.extractor.Close(); err != nil {
		return err
	}
	return s.assistant.Close()
}
