package bill

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bellwood/bill-analyst/internal/extraction"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// greeting seeds every new session's transcript
const greeting = "Hello! Please upload a bill image to begin analysis."

// Message is a single entry in a session's chat transcript
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds one user's state: the chat transcript, the currently
// extracted bill and the identifier of the upload it came from. All
// methods are safe for concurrent use; a session is only ever mutated by
// the handler serving its current request.
type Session struct {
	mu         sync.Mutex
	id         string
	transcript []Message
	bill       *extraction.BillRecord
	uploadID   string
	lastSeen   time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:         id,
		transcript: []Message{{Role: RoleAssistant, Content: greeting}},
		lastSeen:   now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Messages returns a copy of the transcript
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]Message, len(s.transcript))
	copy(messages, s.transcript)
	return messages
}

// Append adds a message to the transcript and returns it
func (s *Session) Append(role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := Message{Role: role, Content: content}
	s.transcript = append(s.transcript, message)
	return message
}

// Bill returns the current bill record, or nil when none is present
func (s *Session) Bill() *extraction.BillRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bill
}

// UploadID returns the identifier of the upload the current bill came
// from, or "" when no bill is present
func (s *Session) UploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// ReplaceBill stores a newly extracted record and the upload it came
// from. The upload identifier changes only here, so it tracks processed
// uploads by identity.
func (s *Session) ReplaceBill(record *extraction.BillRecord, uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bill = record
	s.uploadID = uploadID
}

// ClearBill removes the current bill and upload identifier
func (s *Session) ClearBill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bill = nil
	s.uploadID = ""
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

// defaultSessionTTL is how long an idle session survives before it is
// pruned on the next store access.
const defaultSessionTTL = 24 * time.Hour

// SessionStore holds all live sessions in process memory, keyed by the
// identifier carried in the session cookie. Sessions are isolated from
// each other; nothing is persisted.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates a new SessionStore with the default idle TTL
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithTTL(defaultSessionTTL)
}

// NewSessionStoreWithTTL creates a new SessionStore with a custom idle
// TTL, for testing
func NewSessionStoreWithTTL(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// GetOrInit returns the session for the given identifier, creating one
// with a fresh UUID when the identifier is empty, unknown or expired.
// The returned bool reports whether a new session was created.
func (st *SessionStore) GetOrInit(id string) (*Session, bool) {
	now := time.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.pruneLocked(now)

	if id != "" {
		if sess, ok := st.sessions[id]; ok {
			sess.touch(now)
			return sess, false
		}
	}

	sess := newSession(uuid.New().String(), now)
	st.sessions[sess.id] = sess
	return sess, true
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) pruneLocked(now time.Time) {
	for id, sess := range st.sessions {
		if sess.expired(now, st.ttl) {
			delete(st.sessions, id)
		}
	}
}
