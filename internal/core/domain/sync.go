package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Checkpoint keys.
const (
	KeyConfigVersion     = "CONFIG_VERSION"
	KeyLastContentUpdate = "LAST_CONTENT_UPDATE"
)

// SyncState is the durable checkpoint of the last successful sync.
type SyncState struct {
	ConfigVersion         string
	LastContentUpdateTime string
}

// RemoteState is the state advertised by the remote source.
type RemoteState struct {
	ConfigVersion  string
	LastUpdateTime string
}

// SyncMode is the kind of sync a run performed.
type SyncMode string

// Sync modes.
const (
	SyncModeFull    SyncMode = "full"
	SyncModeDelta   SyncMode = "delta"
	SyncModeWebhook SyncMode = "webhook"
	SyncModeSkipped SyncMode = "skipped"
)

// EventName is the kind of a change event.
type EventName string

// Change event names.
const (
	EventUpdate EventName = "UPDATE"
	EventDelete EventName = "DELETE"
)

// FlexString decodes a JSON string or number into a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// RemoteID identifies one remote node.
type RemoteID struct {
	ID       string
	TypeName string
	SiteID   string
}

// Key returns the storage key of the node.
func (r RemoteID) Key() string {
	if r.SiteID == "" {
		return r.ID
	}
	return r.ID + "@" + r.SiteID
}

// ChangeEvent is the unit exchanged with the sourcing step.
type ChangeEvent struct {
	EventName      EventName
	RemoteTypeName string
	RemoteID       RemoteID
}

// String renders the event for logs.
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s %s", e.EventName, e.RemoteTypeName, e.RemoteID.Key())
}

// PreviewToken is a credential that may be attached to at most one request.
type PreviewToken struct {
	mu    sync.Mutex
	value string
}

// NewPreviewToken wraps a token value. An empty value yields nil.
func NewPreviewToken(value string) *PreviewToken {
	if value == "" {
		return nil
	}
	return &PreviewToken{value: value}
}

// Take returns the token and clears it. Only the first call gets the value.
func (t *PreviewToken) Take() (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.value
	t.value = ""
	return v, v != ""
}

// WebhookPayload is the body of an inbound webhook call.
type WebhookPayload struct {
	Operation string     `json:"operation"`
	TypeName  string     `json:"typeName"`
	ID        FlexString `json:"id"`
	SiteID    FlexString `json:"siteId,omitempty"`
	Token     string     `json:"token,omitempty"`
}

// Validate checks the fields every payload must carry.
func (p WebhookPayload) Validate() error {
	var missing []string
	if p.Operation == "" {
		missing = append(missing, "operation")
	}
	if p.TypeName == "" {
		missing = append(missing, "typeName")
	}
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: webhook payload missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// SyncRun records the outcome of one sync cycle.
type SyncRun struct {
	ID        string
	Mode      SyncMode
	StartedAt time.Time
	EndedAt   time.Time

	// Updated and Deleted count applied node changes.
	Updated int
	Deleted int

	// Success is false when the run returned an error.
	Success bool
	Error   string
}

// Duration returns how long the run took.
func (r *SyncRun) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// SourceResult counts what a sourcing pass applied.
type SourceResult struct {
	Updated int
	Deleted int
}

// Node is one sourced remote node.
type Node struct {
	RemoteID  RemoteID
	Data      json.RawMessage
	SourcedAt time.Time
}
