// Package session coordinates the attach lifecycle of a bbtrace channel: it
// mints the channel's shared-memory name, resolves whichever side creates
// the segment first, retries attach with backoff, and launches the drrun
// client that injects the producer agent into the target executable.
package session

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// DefaultChannelPrefix is prepended to every generated channel name. The
// "Local\" namespace restricts the mapping to the caller's Terminal
// Services session.
const DefaultChannelPrefix = `Local\bbtrace_shm_`

// NewChannelName mints a fresh, collision-resistant channel name: a prefix
// followed by a random UUID. prefix overrides DefaultChannelPrefix when
// non-empty.
func NewChannelName(prefix string) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + uuid.NewString()
}

// ChannelHash derives the 32-bit value stamped into ShmHeader.Channel and
// checked by Segment.Verify. It hashes the full channel name with FNV-1a,
// so two independently generated channels are overwhelmingly unlikely to
// verify against each other even if a caller supplied its own non-UUID
// name.
func ChannelHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}
