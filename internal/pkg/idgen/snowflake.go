package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// RequestID generates a new Snowflake ID for correlating a GraphQL call
// across client logs and the X-Request-ID header
func RequestID() string {
	// no-op once a node exists; once.Do also publishes node to this goroutine
	_ = Initialize(1)
	return node.Generate().String()
}
