// Package store persists sessions as an append-only filesystem layout:
//
//	<root>/<sessionId>/metadata.json    session metadata
//	<root>/<sessionId>/messages.jsonl   one message per line, append-only
//	<root>/<sessionId>/images/<file>    PNG blobs
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/openmule/gacua/internal/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrSessionExists is returned by Create for an already-known id.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound is returned for lookups of unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)

const (
	metadataFile = "metadata.json"
	messagesFile = "messages.jsonl"
	imagesDir    = "images"
)

// Store is a filesystem-backed session repository. Message appends within one
// session are serialized by the caller (one agent task per session); metadata
// read-modify-write is additionally guarded by a per-session mutex so that
// accept-set updates and status transitions never interleave.
type Store struct {
	root string
	log  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session root: %w", err)
	}
	return &Store{
		root:  dir,
		log:   logger.Named("store"),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

// Create writes the metadata for a new session and prepares its message log
// and image directory. It fails with ErrSessionExists for a known id.
func (s *Store) Create(session schemas.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	lock := s.sessionLock(session.ID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.sessionDir(session.ID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err == nil {
		return fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}
	if err := os.MkdirAll(filepath.Join(dir, imagesDir), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := s.writeMetadata(session); err != nil {
		return err
	}
	// Touch the log so recovery sees an empty-but-present session.
	f, err := os.OpenFile(filepath.Join(dir, messagesFile), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}
	defer f.Close()

	s.log.Info("Session created", zap.String("session_id", session.ID))
	return nil
}

// Get returns the current metadata for a session.
func (s *Store) Get(id string) (schemas.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return schemas.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return schemas.Session{}, fmt.Errorf("failed to read session metadata: %w", err)
	}
	var session schemas.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return schemas.Session{}, fmt.Errorf("failed to decode session metadata: %w", err)
	}
	return session, nil
}

// List returns metadata for every session under the root, sorted by id
// (which sorts by creation time). Entries whose metadata cannot be read or
// decoded are skipped with a warning.
func (s *Store) List() ([]schemas.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read session root: %w", err)
	}
	sessions := make([]schemas.Session, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		session, err := s.Get(e.Name())
		if err != nil {
			s.log.Warn("Skipping unreadable session", zap.String("session_id", e.Name()), zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// Update merges a partial update into the session metadata. The id itself is
// immutable.
func (s *Store) Update(id string, update schemas.SessionUpdate) (schemas.Session, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(id)
	if err != nil {
		return schemas.Session{}, err
	}
	if update.Name != nil {
		session.Name = *update.Name
	}
	if update.Model != nil {
		session.Model = *update.Model
	}
	if update.Status != nil {
		session.Status = *update.Status
	}
	if update.StatusMessage != nil {
		session.StatusMessage = *update.StatusMessage
	}
	if update.AcceptedTools != nil {
		session.AcceptedTools = update.AcceptedTools
	}
	if err := s.writeMetadata(session); err != nil {
		return schemas.Session{}, err
	}
	return session, nil
}

func (s *Store) writeMetadata(session schemas.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}
	path := filepath.Join(s.sessionDir(session.ID), metadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	return nil
}

// AppendMessages atomically extends the session log. The whole batch is
// serialized into one buffer and written with a single O_APPEND write, so a
// crash leaves at most one partial trailing line.
func (s *Store) AppendMessages(id string, msgs []schemas.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if _, err := os.Stat(s.sessionDir(id)); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode message %s: %w", m.ID, err)
		}
	}

	f, err := os.OpenFile(filepath.Join(s.sessionDir(id), messagesFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open message log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

// GetMessages returns the full log in append order. A partial line at the
// end of the file is treated as absent. When includeHidden is false,
// model-only messages (ForDisplay == false) are filtered out.
func (s *Store) GetMessages(id string, includeHidden bool) ([]schemas.Message, error) {
	f, err := os.Open(filepath.Join(s.sessionDir(id), messagesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}
	defer f.Close()

	var msgs []schemas.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m schemas.Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			// A record that fails to decode can only be a torn final write.
			s.log.Warn("Dropping undecodable log line", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if !includeHidden && m.Hidden() {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read message log: %w", err)
	}
	return msgs, nil
}
