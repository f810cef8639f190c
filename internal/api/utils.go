package api

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// generateID builds a host identifier from the resource type, a sanitized
// display name, and a random suffix. Stack identifiers come from the
// compose executor and use the same uuid scheme.
func generateID(resourceType, name string) string {
	sanitized := strings.ToLower(name)
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	sanitized = strings.ReplaceAll(sanitized, "_", "-")

	return fmt.Sprintf("%s-%s-%s", resourceType, sanitized, uuid.New().String())
}
