package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init pins this process's Snowflake node ID. The server, worker and
// explore binaries each call it at startup with distinct IDs so event
// and delivery IDs stay unique across instances. Once a node exists,
// later calls are no-ops.
func Init(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// New generates a globally unique, time-ordered int64 ID. Without a
// prior Init the generator lazily pins node 0, so embedding the graph
// library needs no setup.
func New() int64 {
	mu.Lock()
	if node == nil {
		// Node 0 is always in range, so the error is unreachable.
		node, _ = snowflake.NewNode(0)
	}
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}
