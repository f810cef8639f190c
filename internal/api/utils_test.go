package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	id := generateID("host", "Prod 01")
	assert.True(t, strings.HasPrefix(id, "host-prod-01-"), id)
	assert.NotContains(t, id, " ")

	// The random suffix makes same-name registrations collision-free.
	assert.NotEqual(t, id, generateID("host", "Prod 01"))
}
