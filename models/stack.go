package models

import "time"

// StackState is the last-known state of a Compose stack.
//
// The state machine is Created → Up → Down → Up → …; Unknown is reachable
// from any state when an operation's outcome cannot be determined (for
// example a timeout mid-command) and resolves back to Up or Down only
// through a later successful up, down, or ps.
type StackState string

const (
	StackCreated StackState = "created"
	StackUp      StackState = "up"
	StackDown    StackState = "down"
	StackUnknown StackState = "unknown"
)

// Stack represents a Compose project bound to one host.
//
// The project name is the Compose project namespace and must be unique per
// host; duplicate registrations are rejected with a Conflict before any
// remote command is issued.
//
// Deleting a Stack record does not tear down running containers; callers
// that want teardown issue an explicit down first.
type Stack struct {
	// Kind is the document kind discriminator (always "stack")
	Kind string `json:"kind"`

	// ID is the unique stack identifier (maps to CouchDB _id)
	ID string `json:"id" couchdb:"_id"`

	// Rev is the CouchDB document revision
	Rev string `json:"_rev,omitempty" couchdb:"_rev"`

	// HostID is the owning host identifier (required, indexed)
	HostID string `json:"hostId" validate:"required" couchdb:"relation,index"`

	// Project is the Compose project name, unique per host
	Project string `json:"project" validate:"required" couchdb:"required,index"`

	// Definition is the Compose file content (YAML)
	Definition string `json:"definition" validate:"required"`

	// State is the last-known stack state
	State StackState `json:"state" couchdb:"index"`

	// LastError holds the stderr of the most recent failed operation
	LastError string `json:"lastError,omitempty"`

	// CreatedAt is the stack creation timestamp
	CreatedAt time.Time `json:"createdAt" couchdb:"index"`

	// UpdatedAt is the last state-change timestamp
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocKindStack is the document kind stored for Stack records.
const DocKindStack = "stack"
