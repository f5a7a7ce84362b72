package utilities

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE. If node setup fails it falls
// back to node 1 so an ID is always produced.
func NewSnowflakeID() string {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return NewSnowflakeIDWithNode(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return NewSnowflakeIDWithNode(1)
	}
	return NewSnowflakeIDWithNode(nodeID)
}

// NewSnowflakeIDWithNode generates a snowflake ID string using the provided node ID.
// If the node cannot be initialized, it falls back to a KSUID string.
func NewSnowflakeIDWithNode(nodeID int64) string {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return NewKSUID()
	}
	return node.Generate().String()
}

// NewAccessToken generates an opaque bearer token for actor self-service
// access. KSUIDs are URL-safe and unguessable enough for a short-lived,
// single-actor credential.
func NewAccessToken() string {
	return ksuid.New().String() + ksuid.New().String()
}

// NewPolicyNumber generates a human-referenceable policy number,
// e.g. POL-2026-2EXAMPLEKSUIDPART.
func NewPolicyNumber(now time.Time) string {
	return "POL-" + strconv.Itoa(now.Year()) + "-" + strings.ToUpper(ksuid.New().String()[:10])
}
