// Package models holds the data shapes shared across the tool server, the
// gateway, and the HTTP API: identities, staff records, sessions, messages,
// and the closed sum types used for LLM content blocks.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// User is a caller's resolved identity. The canonical id IS the lowercase,
// trimmed email; identity is derived from the external provider, never
// created here.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	PictureURL string   `json:"picture_url,omitempty" bson:"picture_url,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NormalizeEmail lowercases and trims an email for use as a canonical key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StaffRecord is an external, read-only identity allow-list entry. Only
// records with Active set to true may authenticate.
type StaffRecord struct {
	Email  string   `json:"email"`
	Active bool     `json:"active"`
	ACLs   []string `json:"acls"`
}

// AuthSession is an opaque bearer-token session bound to a staff identity.
// One session exists per email; re-login refreshes profile fields but
// preserves the existing token.
type AuthSession struct {
	Token     string    `json:"token" bson:"token"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	PictureURL string   `json:"picture_url,omitempty" bson:"picture_url,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Session is an ordered, append-only conversation thread owned by one user.
type Session struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Role identifies a message's author type in a conversation session.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolUse    Role = "tool_use"
	RoleToolResult Role = "tool_result"
)

// Message is one entry in a session transcript. It is the persisted,
// duck-typed-at-rest shape; ToBlock projects it into the closed sum type
// used by the orchestrator (see Block in content.go). Field presence, not a
// tag, still distinguishes variants here because this is the storage
// document, not the in-memory representation the redesign targets.
type Message struct {
	ID         string         `json:"id" bson:"_id"`
	SessionID  string         `json:"session_id" bson:"session_id"`
	Role       Role           `json:"role" bson:"role"`
	Content    string         `json:"content" bson:"content"`
	ToolName   string         `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty" bson:"tool_input,omitempty"`
	ToolUseID  string         `json:"tool_use_id,omitempty" bson:"tool_use_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
}

// ToolDescriptor advertises one callable tool: its name, description, JSON
// schema input, and the ACL tags required to invoke it (empty means the ACL
// engine's default policy or public list governs).
type ToolDescriptor struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	InputSchema    json.RawMessage `json:"inputSchema"`
	RequiredACLs   []string        `json:"-"`
}

// ACLConfig is the declarative access-control document loaded from the ACL
// config file: default policy, superuser tags, public tool names, and the
// tool-name -> required-ACL-tags mapping (OR semantics within each list).
type ACLConfig struct {
	DefaultPolicy string              `yaml:"default_policy"`
	SuperuserACLs []string            `yaml:"superuser_acls"`
	PublicTools   []string            `yaml:"public_tools"`
	ToolACLs      map[string][]string `yaml:"tool_acls"`
}

const (
	PolicyOpen = "open"
	PolicyDeny = "deny"
)
