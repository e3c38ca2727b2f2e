package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/tool"
)

// Status is a task's lifecycle state (spec §3 TaskList).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is one row of a TaskList, with its position-derived ID.
type Task struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// TaskWithStatus is the caller-supplied shape for manage_task_list, before
// IDs are assigned by position.
type TaskWithStatus struct {
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// TaskList is the full replace-unit state a TaskListModule owns.
type TaskList struct {
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

func fromTasksWithStatus(title string, rows []TaskWithStatus) TaskList {
	tasks := make([]Task, len(rows))
	for i, r := range rows {
		tasks[i] = Task{ID: i, Description: r.Description, Status: r.Status}
	}
	return TaskList{Title: title, Tasks: tasks}
}

func defaultTaskList() TaskList {
	return TaskList{
		Title: "Understand user requirements",
		Tasks: []Task{
			{ID: 0, Description: "Await user request", Status: StatusInProgress},
			{ID: 1, Description: "Understand/explore the code base and propose a comprehensive plan", Status: StatusPending},
		},
	}
}

// TaskListModule owns the single source of truth for a session's task
// list, under a read-write lock with one writer: the manage_task_list
// tool (spec §5 shared-resource rule). It contributes a prompt fragment, a
// context section, the manage_task_list tool, and keyed session state.
//
// Grounded on tycode-core/src/modules/task_list.rs's TaskListModule/
// TaskListModuleInner split (an Arc'd inner value cloned into the tool and
// the context component so neither holds a back-reference to the module).
type TaskListModule struct {
	Base
	mu    sync.RWMutex
	list  TaskList
	sink  *events.Sink
	sessID string
}

// NewTaskListModule creates a module seeded with the default onboarding
// task list and emits its first TaskUpdate.
func NewTaskListModule(sink *events.Sink, sessionID string) *TaskListModule {
	m := &TaskListModule{Base: Base{NameValue: "task_list"}, list: defaultTaskList(), sink: sink, sessID: sessionID}
	m.emitUpdate()
	return m
}

// Get returns a copy of the current task list.
func (m *TaskListModule) Get() TaskList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list
}

// ErrEmptyTaskList is returned when manage_task_list is called with zero
// tasks (spec §4.12: "rejects empty tasks array").
var ErrEmptyTaskList = errors.New("tasks array must not be empty")

// ErrMultipleInProgress is returned when a replacement would leave more
// than one task InProgress, violating spec §8's monotonic-status invariant.
var ErrMultipleInProgress = errors.New("at most one task may be in_progress at a time")

// Replace atomically swaps the task list and emits exactly one TaskUpdate
// event (spec §8 invariant 4), validating the empty-array and
// at-most-one-InProgress invariants first so a rejected call leaves the
// prior list untouched.
func (m *TaskListModule) Replace(title string, rows []TaskWithStatus) error {
	if len(rows) == 0 {
		return ErrEmptyTaskList
	}
	inProgress := 0
	for _, r := range rows {
		if r.Status == StatusInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return ErrMultipleInProgress
	}

	m.mu.Lock()
	m.list = fromTasksWithStatus(title, rows)
	m.mu.Unlock()

	m.emitUpdate()
	return nil
}

func (m *TaskListModule) emitUpdate() {
	if m.sink == nil {
		return
	}
	list := m.Get()
	rows := make([]events.TaskStatusRow, len(list.Tasks))
	for i, t := range list.Tasks {
		rows[i] = events.TaskStatusRow{Description: t.Description, Status: string(t.Status)}
	}
	m.sink.Send(events.Event{
		Kind:      events.KindTaskUpdate,
		SessionID: m.sessID,
		Payload:   events.TaskUpdatePayload{Title: list.Title, Tasks: rows},
	})
}

const taskListManagementPrompt = `## Task List Management
- The context always includes a task list, used to break large tasks into smaller validated steps and to keep the user informed of progress.
- Design steps so each can be validated (build and test) where feasible.
- Update the task list with manage_task_list whenever a plan is approved or a task completes; manage_task_list must always be combined with at least one other tool call.
- Before marking a task complete: it must comply with style requirements, build, and pass tests where those are possible.
- complete_task is only used once the final task in the list is done.`

type taskListPromptComponent struct{}

func (taskListPromptComponent) ID() string { return "tasks" }
func (taskListPromptComponent) BuildPromptSection() (string, bool) {
	return taskListManagementPrompt, true
}

type taskListContextComponent struct{ m *TaskListModule }

func (c taskListContextComponent) ID() string { return "tasks" }
func (c taskListContextComponent) BuildContextSection(ctx context.Context) (string, bool) {
	list := c.m.Get()
	if len(list.Tasks) == 0 {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task List: %s\n", list.Title)
	for _, t := range list.Tasks {
		fmt.Fprintf(&b, "  - [%s] Task %d: %s\n", statusMarker(t.Status), t.ID, t.Description)
	}
	return b.String(), true
}

func statusMarker(s Status) string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

type taskListSessionState struct{ m *TaskListModule }

func (s taskListSessionState) Key() string { return "task_list" }
func (s taskListSessionState) Save() (json.RawMessage, error) {
	return json.Marshal(s.m.Get())
}
func (s taskListSessionState) Load(state json.RawMessage) error {
	var list TaskList
	if err := json.Unmarshal(state, &list); err != nil {
		return err
	}
	rows := make([]TaskWithStatus, len(list.Tasks))
	for i, t := range list.Tasks {
		rows[i] = TaskWithStatus{Description: t.Description, Status: t.Status}
	}
	// Restoring from a saved session bypasses the monotonic-status check:
	// the prior session already satisfied it when it was written.
	s.m.mu.Lock()
	s.m.list = fromTasksWithStatus(list.Title, rows)
	s.m.mu.Unlock()
	return nil
}

func (m *TaskListModule) PromptComponents() []PromptComponent {
	return []PromptComponent{taskListPromptComponent{}}
}

func (m *TaskListModule) ContextComponents() []ContextComponent {
	return []ContextComponent{taskListContextComponent{m: m}}
}

func (m *TaskListModule) Tools() []tool.Tool {
	return []tool.Tool{&ManageTaskListTool{module: m}}
}

func (m *TaskListModule) SessionState() (SessionStateComponent, bool) {
	return taskListSessionState{m: m}, true
}

func (m *TaskListModule) SettingsNamespace() string { return "" }
