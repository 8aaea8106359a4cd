package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	mu   sync.Mutex
)

// Init sets the Snowflake node ID. The first valid call wins; an invalid
// node ID is always rejected and leaves the generator untouched.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node = n
	}
	return nil
}

// New generates a time-ordered int64 ID for an analysis run.
// Without a successful Init it uses node 1.
func New() int64 {
	mu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}

// Parse reads an ID from its decimal form. IDs leave the server as JSON
// strings because browsers lose precision above 2^53.
func Parse(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
