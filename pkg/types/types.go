package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

type EventType string

const (
	EventAddProgram    EventType = "add_program"
	EventRemoveProgram EventType = "remove_program"
	EventAddScope      EventType = "add_scope"
	EventRemoveScope   EventType = "remove_scope"
	EventAssetIgnored  EventType = "asset_ignored"
)

// EventTypes lists every history event type.
var EventTypes = []EventType{
	EventAddProgram,
	EventRemoveProgram,
	EventAddScope,
	EventRemoveScope,
	EventAssetIgnored,
}

// Program is identified by (Platform, Slug).
type Program struct {
	ID          int64          `json:"id" db:"id"`
	Platform    scope.Platform `json:"platform" db:"platform"`
	Slug        string         `json:"slug" db:"slug"`
	Name        string         `json:"name" db:"name"`
	Bounty      bool           `json:"bounty" db:"bounty"`
	LastUpdated time.Time      `json:"last_updated" db:"last_updated"`
}

// Scope is identified by (ProgramID, Value) and is never updated in place.
type Scope struct {
	ID        int64           `json:"id" db:"id"`
	ProgramID int64           `json:"program_id" db:"program_id"`
	Value     string          `json:"value" db:"value"`
	Type      scope.AssetType `json:"type" db:"type"`
	IsInScope bool            `json:"is_in_scope" db:"is_in_scope"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// IgnoredAsset records a canonical value that failed validation so the
// rejection is only reported once.
type IgnoredAsset struct {
	ID          int64          `json:"id" db:"id"`
	Platform    scope.Platform `json:"platform" db:"platform"`
	ProgramSlug string         `json:"program_slug" db:"program_slug"`
	Value       string         `json:"value" db:"value"`
	Reason      string         `json:"reason" db:"reason"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type HistoryEvent struct {
	ID           int64      `json:"id" db:"id"`
	ProgramID    *int64     `json:"program_id,omitempty" db:"program_id"`
	PlatformName string     `json:"platform_name" db:"platform_name"`
	ProgramName  string     `json:"program_name" db:"program_name"`
	EventType    EventType  `json:"event_type" db:"event_type"`
	Details      string     `json:"details" db:"details"`
	ScopeType    *string    `json:"scope_type,omitempty" db:"scope_type"`
	Category     *string    `json:"category,omitempty" db:"category"`
	ExtraData    *ExtraData `json:"extra_data,omitempty" db:"extra_data"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ScopeSnapshot groups a program's scope values by category ("in"/"out") and
// then by type.
type ScopeSnapshot map[string]map[scope.AssetType][]string

// NewScopeSnapshot builds a snapshot with both categories present.
func NewScopeSnapshot(scopes []Scope) ScopeSnapshot {
	snap := ScopeSnapshot{"in": {}, "out": {}}
	for _, s := range scopes {
		cat := scope.Category(s.IsInScope)
		snap[cat][s.Type] = append(snap[cat][s.Type], s.Value)
	}
	return snap
}

// ExtraData is the structured payload attached to history rows. It is stored
// as a JSON document.
type ExtraData struct {
	Slug   string        `json:"slug,omitempty"`
	Scopes ScopeSnapshot `json:"scopes,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

func (e ExtraData) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *ExtraData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported extra_data type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, e)
}

// ScopeStats counts scopes by their final type.
type ScopeStats map[scope.AssetType]int

func (s ScopeStats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// StringPtr is a convenience for the nullable history columns.
func StringPtr(s string) *string {
	return &s
}
