package engine

import (
	"hash/fnv"
	"sync"
)

// channelLockShards bounds memory for long-lived processes: channel IDs
// hash into a fixed pool instead of growing a lock per channel forever.
// Two unrelated channels can rarely share a shard and contend; that
// costs latency, never correctness.
const channelLockShards = 512

// ChannelLocks serializes turn processing per channel. Messages in the
// same channel are handled strictly one at a time; messages in
// different channels proceed concurrently unless they collide on a
// shard.
//
// ChannelLocks is safe for concurrent use.
type ChannelLocks struct {
	shards [channelLockShards]sync.Mutex
}

// NewChannelLocks creates the lock pool.
func NewChannelLocks() *ChannelLocks {
	return &ChannelLocks{}
}

// Acquire blocks until the channel's lock is held and returns the
// release function. Callers must release exactly once, normally via
// defer, so a panicking turn cannot wedge the channel.
func (c *ChannelLocks) Acquire(channelID string) (release func()) {
	h := fnv.New32a()
	h.Write([]byte(channelID))
	lock := &c.shards[h.Sum32()%channelLockShards]
	lock.Lock()
	return lock.Unlock
}
