package utilities_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netoho/hestia-app-staging-sub001/pkg/utilities"
)

func TestNewAccessTokenIsOpaqueAndUnique(t *testing.T) {
	a := utilities.NewAccessToken()
	b := utilities.NewAccessToken()
	assert.Len(t, a, 54) // two concatenated ksuids
	assert.NotEqual(t, a, b)
}

func TestNewPolicyNumberFormat(t *testing.T) {
	n := utilities.NewPolicyNumber(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(n, "POL-2026-"), n)
	assert.Len(t, n, len("POL-2026-")+10)
	assert.Equal(t, strings.ToUpper(n), n)
}

func TestNewSnowflakeIDFallsBackOnBadNode(t *testing.T) {
	assert.NotEmpty(t, utilities.NewSnowflakeIDWithNode(1))
	// out-of-range node falls back to a ksuid
	assert.NotEmpty(t, utilities.NewSnowflakeIDWithNode(99999))
}
