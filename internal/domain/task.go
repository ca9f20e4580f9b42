package domain

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTaskNotFound    = errors.New("task not found")
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
	SessionError   SessionStatus = "error"
)

// Params is an open key-value payload. Its schema varies per action and is
// validated by the worker, not by the engine.
type Params map[string]any

// Action is one of the automation verbs understood by the camoufox worker.
type Action string

const (
	ActionNavigate       Action = "navigate"
	ActionScreenshot     Action = "screenshot"
	ActionGetContent     Action = "get_content"
	ActionClick          Action = "click"
	ActionFill           Action = "fill"
	ActionEvaluate       Action = "evaluate"
	ActionGetCookies     Action = "get_cookies"
	ActionSetCookies     Action = "set_cookies"
	ActionDeleteCookies  Action = "delete_cookies"
	ActionClearCookies   Action = "clear_cookies"
	ActionGetStorage     Action = "get_storage"
	ActionSetStorage     Action = "set_storage"
	ActionDeleteStorage  Action = "delete_storage"
	ActionClearStorage   Action = "clear_storage"
	ActionSetGeolocation Action = "set_geolocation"
	ActionGeneratePDF    Action = "generate_pdf"
	ActionWaitSelector   Action = "wait_for_selector"
	ActionWaitTimeout    Action = "wait_for_timeout"
	ActionPressKey       Action = "press_key"
	ActionTypeText       Action = "type_text"
	ActionMouseClick     Action = "mouse_click"
	ActionMouseMove      Action = "mouse_move"
	ActionDragAndDrop    Action = "drag_and_drop"
	ActionUploadFile     Action = "upload_file"
)

var knownActions = map[Action]struct{}{
	ActionNavigate: {}, ActionScreenshot: {}, ActionGetContent: {},
	ActionClick: {}, ActionFill: {}, ActionEvaluate: {},
	ActionGetCookies: {}, ActionSetCookies: {}, ActionDeleteCookies: {}, ActionClearCookies: {},
	ActionGetStorage: {}, ActionSetStorage: {}, ActionDeleteStorage: {}, ActionClearStorage: {},
	ActionSetGeolocation: {}, ActionGeneratePDF: {},
	ActionWaitSelector: {}, ActionWaitTimeout: {},
	ActionPressKey: {}, ActionTypeText: {},
	ActionMouseClick: {}, ActionMouseMove: {},
	ActionDragAndDrop: {}, ActionUploadFile: {},
}

func ValidAction(a Action) bool {
	_, ok := knownActions[a]
	return ok
}

// Task is one queued automation action with a tracked lifecycle.
// Result and Error are mutually exclusive and set only in a terminal state.
type Task struct {
	ID          int64          `json:"id"`
	SessionID   int64          `json:"sessionId"`
	UserID      int64          `json:"userId"`
	Action      Action         `json:"action"`
	Parameters  Params         `json:"parameters"`
	Status      TaskStatus     `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Session is a named execution context carrying shared browser configuration
// for the tasks run against it. The engine reads BrowserConfig and never
// mutates a session.
type Session struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"userId"`
	Name          string        `json:"name"`
	Status        SessionStatus `json:"status"`
	BrowserConfig Params        `json:"browserConfig,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Dispatch is the queue message handed from submission to an execution
// worker. Session configuration is deliberately not carried here; the worker
// loads it at execution time.
type Dispatch struct {
	TaskID     int64  `json:"task_id"`
	SessionID  int64  `json:"session_id"`
	Action     Action `json:"action"`
	Parameters Params `json:"parameters"`
}

// Outcome is the structured result of one worker invocation, matching the
// single response document the worker prints on exit.
type Outcome struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}
