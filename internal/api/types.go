package api

import (
	"evalgo.org/dockhand/models"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// PaginatedHostsResponse represents a paginated list of hosts.
type PaginatedHostsResponse struct {
	Count  int            `json:"count"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Hosts  []*models.Host `json:"hosts"`
}

// PaginatedStacksResponse represents a paginated list of stacks.
type PaginatedStacksResponse struct {
	Count  int             `json:"count"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Stacks []*models.Stack `json:"stacks"`
}

// ContainersResponse represents a list of containers on one host.
type ContainersResponse struct {
	Count      int                       `json:"count"`
	HostID     string                    `json:"hostId"`
	Containers []models.ContainerSummary `json:"containers"`
}

// StackPSResponse represents a Compose stack listing.
type StackPSResponse struct {
	Count      int                       `json:"count"`
	StackID    string                    `json:"stackId"`
	Containers []models.ContainerSummary `json:"containers"`
}
