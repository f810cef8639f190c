// Package dockhand manages containers and Compose stacks across a fleet of
// Docker hosts.
//
// # Overview
//
// Dockhand reaches each host over one of two transports: directly through
// the Docker engine API (local socket or TCP endpoint), or over SSH where
// nothing but a shell and the docker CLI are required on the far side.
// A shared connection pool keeps one live transport per host, probes it on
// first use, and evicts it on transport failure or idleness.
//
// The service consists of three layers:
//   - API Server: REST API and WebSocket events for fleet operations
//   - Execution Core: transport adapters, connection pool, and the
//     container and Compose executors
//   - Storage Layer: CouchDB-backed host and stack records
//
// # Architecture
//
//	┌─────────────────┐
//	│  API Server     │
//	│  (Echo REST)    │
//	└────────┬────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│ Execution Core  │◄──────┤  Storage Layer  │
//	│ (Pool/Executors)│       │  (EVE/CouchDB)  │
//	└────────┬────────┘       └─────────────────┘
//	         │
//	    direct │ ssh
//	┌────────▼────────┐
//	│  Docker Hosts   │
//	└─────────────────┘
//
// # Core Features
//
// Transports:
//   - Direct engine API access with version negotiation
//   - SSH execution with private key auth, optional sudo, and a
//     best-effort tunnel to the remote engine socket
//
// Container Operations:
//   - List, start, and inspect containers on any registered host
//   - Uniform result shapes regardless of transport
//
// Compose Stacks:
//   - One Compose project bound to one host, unique per host
//   - Explicit up/down/restart/ps with a persisted state machine
//   - Definitions validated before anything reaches a host
//
// # Usage
//
// Start the API server:
//
//	dockhand server --config configs/config.yaml
//
// Register a host and run a stack:
//
//	dockhand host add --name edge7 --transport ssh --address 10.0.1.7 \
//	    --user deploy --credential-ref edge7.key
//	dockhand stack create <host-id> ./compose.yaml --project web
//	dockhand stack up <stack-id>
//
// # Error Taxonomy
//
// Every operation failure carries exactly one ErrorKind (not_found,
// conflict, host_unreachable, remote_command_error, timeout, cancelled,
// invalid_definition) plus a human-readable detail. The REST layer maps
// kinds to HTTP status codes.
package dockhand
