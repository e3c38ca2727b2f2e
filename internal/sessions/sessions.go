// Package sessions implements append-only session persistence and replay
// (spec §4.10): each session's messages, emitted events, and per-module
// state are saved as a single JSON file; List/Resume/Delete operate over a
// directory of such files.
//
// Grounded on tycode-core/tests/sessions.rs's SessionData{id, messages,
// events, module_state}/storage::{save_session,load_session,list_sessions}
// shape, and on haasonsaas-nexus's internal/sessions.Store interface and
// internal/artifacts/local_store.go's atomic-write-then-rename discipline.
package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Data is the full persisted state of one session.
type Data struct {
	ID          string                     `json:"id"`
	Messages    []chatmodel.Message        `json:"messages"`
	Events      []events.Event             `json:"events"`
	ModuleState map[string]json.RawMessage `json:"module_state"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// NewData constructs a new session with a generated ID and module state map.
func NewData(messages []chatmodel.Message) *Data {
	now := time.Now().UTC()
	return &Data{
		ID:          uuid.NewString(),
		Messages:    messages,
		Events:      nil,
		ModuleState: map[string]json.RawMessage{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// firstMessagePrefixLen bounds the listing preview taken from the first
// user message's text.
const firstMessagePrefixLen = 80

// Summary is the lightweight listing record returned by Store.List, per
// spec §4.9: (id, first user message prefix, task_list.title, updated_at).
type Summary struct {
	ID                 string    `json:"id"`
	FirstMessagePrefix string    `json:"first_message_prefix"`
	TaskListTitle      string    `json:"task_list_title,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func summarize(data *Data) Summary {
	s := Summary{ID: data.ID, CreatedAt: data.CreatedAt, UpdatedAt: data.UpdatedAt}

	for _, m := range data.Messages {
		if m.Role != chatmodel.RoleUser {
			continue
		}
		text := m.TextOnly()
		if len(text) > firstMessagePrefixLen {
			text = text[:firstMessagePrefixLen]
		}
		s.FirstMessagePrefix = text
		break
	}

	if raw, ok := data.ModuleState["task_list"]; ok {
		var taskList struct {
			Title string `json:"title"`
		}
		if json.Unmarshal(raw, &taskList) == nil {
			s.TaskListTitle = taskList.Title
		}
	}

	return s
}

// ErrNotFound is returned by Load/Delete when the session id does not exist.
var ErrNotFound = errors.New("session not found")

// Store persists Data to a directory, one JSON file per session named
// "<id>.json".
type Store struct {
	dir string
}

// NewStore opens a session store rooted at dir. The directory is created
// lazily on first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save atomically writes session data to disk via temp-file-then-rename,
// so a crash mid-write never corrupts a previously saved session.
func (s *Store) Save(data *Data) error {
	if data.ID == "" {
		return errors.New("session id is required")
	}
	data.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating sessions directory: %w", err)
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(data.ID)); err != nil {
		return fmt.Errorf("renaming session file into place: %w", err)
	}
	return nil
}

// Load reads a session by id.
func (s *Store) Load(id string) (*Data, error) {
	raw, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &data, nil
}

// Delete removes a session's file.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting session file: %w", err)
	}
	return nil
}

// List returns every session's summary sorted by UpdatedAt descending
// (most recently active session first), per spec §4.9.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".json")]
		data, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, summarize(data))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Replay re-emits every historical event in a loaded session through sink
// as a replay (Replay:true, not re-appended to the sink's own history),
// so a resumed UI can reconstruct prior state without re-running any turn.
func Replay(data *Data, sink *events.Sink) {
	for _, e := range data.Events {
		sink.SendReplay(e)
	}
}
