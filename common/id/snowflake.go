package id

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init binds the run id generator to nodeID. The server and the replay CLI
// use different node ids so their runs never collide.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered run id. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// StartedAt recovers the wall-clock time a run id was minted at.
func StartedAt(runID int64) time.Time {
	return time.UnixMilli(snowflake.ParseInt64(runID).Time())
}
