package models

import "time"

// TransportKind selects how Dockhand reaches a host's Docker engine.
type TransportKind string

const (
	// TransportDirect connects straight to a Docker engine endpoint
	// (unix socket or tcp://host:port engine API).
	TransportDirect TransportKind = "direct"

	// TransportSSH opens an authenticated SSH session to the host and
	// issues engine calls over a forwarded socket or via the docker CLI.
	TransportSSH TransportKind = "ssh"
)

// Host represents a registered Docker host reachable over one transport kind.
//
// Which fields are required depends on the transport:
//   - direct: Address must be an engine endpoint (unix:///var/run/docker.sock
//     or tcp://10.0.0.5:2376); SSH credential fields must be empty.
//   - ssh: Address is the hostname or IP, User and CredentialRef are
//     required, Port defaults to 22.
//
// Mismatched combinations are rejected at registration time and never reach
// the connection pool.
//
// Example JSON representation:
//
//	{
//	  "id": "host-prod-01",
//	  "name": "prod-01",
//	  "transport": "ssh",
//	  "address": "prod-01.example.com",
//	  "port": 22,
//	  "user": "deploy",
//	  "credentialRef": "prod-01-deploy-key"
//	}
type Host struct {
	// Kind is the document kind discriminator (always "host")
	Kind string `json:"kind"`

	// ID is the unique host identifier (maps to CouchDB _id, immutable)
	ID string `json:"id" couchdb:"_id"`

	// Rev is the CouchDB document revision for optimistic locking
	Rev string `json:"_rev,omitempty" couchdb:"_rev"`

	// Name is the human-readable display name (required, indexed)
	Name string `json:"name" validate:"required" couchdb:"required,index"`

	// Transport is the connection kind: direct or ssh
	Transport TransportKind `json:"transport" validate:"required,oneof=direct ssh" couchdb:"index"`

	// Address is the engine endpoint (direct) or hostname/IP (ssh)
	Address string `json:"address" validate:"required"`

	// Port is the SSH port (ssh only, defaults to 22)
	Port int `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// User is the SSH login user (ssh only)
	User string `json:"user,omitempty"`

	// CredentialRef is an opaque reference resolved by the credential
	// store to SSH key material. Never contains the secret itself.
	CredentialRef string `json:"credentialRef,omitempty"`

	// Sudo prefixes remote docker commands with sudo -n (ssh only)
	Sudo bool `json:"sudo,omitempty"`

	// CreatedAt is the registration timestamp
	CreatedAt time.Time `json:"createdAt" couchdb:"index"`
}

// DocKindHost is the document kind stored for Host records.
const DocKindHost = "host"
