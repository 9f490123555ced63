// Package session holds the client-side state of one logical connection: a
// stable session id, the user context, mutable config overrides, and the
// generators for operation and plan ids.
//
// Sessions are constructed explicitly and passed around; there is no process
// singleton, so multiple sessions coexist and teardown is deterministic. All
// mutation is local until a plan is submitted.
package session

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

// DefaultClientType identifies this client implementation to the service.
const DefaultClientType = "spark-connect-go"

// Session is the state of one logical connection. Safe for concurrent use:
// config and tag mutation is serialized, and id generation never hands out
// the same id twice.
type Session struct {
	id         string
	user       wire.UserContext
	clientType string

	mu      sync.Mutex
	config  map[string]string
	tags    []string
	entropy *ulid.MonotonicEntropy
	closed  bool

	planIDs atomic.Int64
}

// Context is an immutable snapshot of the session attached to one outgoing
// request. Concurrent requests each get their own copy, so none observes a
// half-updated config.
type Context struct {
	SessionID  string
	User       wire.UserContext
	Config     map[string]string
	Tags       []string
	ClientType string
}

// New creates a session for the given user. The session id is stable for the
// session's lifetime.
func New(user wire.UserContext) *Session {
	return &Session{
		id:         uuid.NewString(),
		user:       user,
		clientType: DefaultClientType,
		config:     map[string]string{},
		entropy:    ulid.Monotonic(crand.Reader, 0),
	}
}

// ID returns the stable session id.
func (s *Session) ID() string { return s.id }

// User returns the user context the session was created with.
func (s *Session) User() wire.UserContext { return s.user }

// NextOperationID returns a new operation id. Ids are monotonically
// increasing and never reused for the session's lifetime.
func (s *Session) NextOperationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// NextPlanID returns a new process-unique plan id.
func (s *Session) NextPlanID() int64 {
	return s.planIDs.Inc()
}

// SetConfig merges a config override into the session, last write wins. The
// override is visible to plans submitted afterwards; in-flight requests keep
// the snapshot they were issued with.
func (s *Session) SetConfig(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
}

// ConfigValue returns the local override for key, if any.
func (s *Session) ConfigValue(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.config[key]
	return v, ok
}

// AddTag attaches a tag to subsequently submitted operations. Tags must be
// non-empty and must not contain commas.
func (s *Session) AddTag(tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t == tag {
			return nil
		}
	}
	s.tags = append(s.tags, tag)
	return nil
}

// RemoveTag detaches a tag.
func (s *Session) RemoveTag(tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tags {
		if t == tag {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			return nil
		}
	}
	return nil
}

// ClearTags detaches all tags.
func (s *Session) ClearTags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = nil
}

func validateTag(tag string) error {
	if tag == "" {
		return errors.New("tag must not be empty")
	}
	for _, r := range tag {
		if r == ',' {
			return errors.New("tag must not contain ','")
		}
	}
	return nil
}

// Snapshot returns an immutable copy of the session context for one outgoing
// request.
func (s *Session) Snapshot() Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	config := make(map[string]string, len(s.config))
	for k, v := range s.config {
		config[k] = v
	}
	tags := make([]string, len(s.tags))
	copy(tags, s.tags)

	return Context{
		SessionID:  s.id,
		User:       s.user,
		Config:     config,
		Tags:       tags,
		ClientType: s.clientType,
	}
}

// Close marks the session closed. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
