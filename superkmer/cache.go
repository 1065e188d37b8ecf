package superkmer

import (
	"bytes"
	"encoding/binary"
)

// Cache is a per-writer (per thread or per sample) byte buffer sitting
// in front of a partition's bin file. insert appends a super-k-mer's
// encoded payload; once the cache would exceed its byte budget it is
// flushed as one length-prefixed block (spec §4.3):
//
//	[block_len uint32][(n_k uint8, packed_bytes)* ...]
//
// Cache is not safe for concurrent use; callers keep one per writer
// goroutine, matching the "per-writer, thread-local" contract in spec
// §5 (no locking on the common path).
type Cache struct {
	budget int
	buf    bytes.Buffer
	count  int
}

// NewCache creates a cache that flushes once its buffered bytes would
// exceed budget.
func NewCache(budget int) *Cache {
	return &Cache{budget: budget}
}

// Insert appends one encoded super-k-mer. It returns true if this
// insert caused the cache to reach its flush threshold, signalling the
// caller should call Flush before the next insert (the caller holds
// the per-partition mutex only across Flush, not across every
// Insert — spec §5's "writer caches are thread-local so per-item cost
// incurs no locking").
func (c *Cache) Insert(payload []byte) (shouldFlush bool) {
	c.buf.Write(payload)
	c.count++
	return c.buf.Len() >= c.budget
}

// Len reports the number of buffered, not-yet-flushed bytes.
func (c *Cache) Len() int { return c.buf.Len() }

// Count reports the number of buffered, not-yet-flushed super-k-mers.
func (c *Cache) Count() int { return c.count }

// Flush returns the current block's bytes (length-prefixed per spec
// §4.3), the number of super-k-mers it contains, and resets the
// cache. Returns (nil, 0) if there is nothing to flush.
func (c *Cache) Flush() ([]byte, int) {
	if c.buf.Len() == 0 {
		return nil, 0
	}
	body := c.buf.Bytes()
	block := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(block[:4], uint32(len(body)))
	copy(block[4:], body)
	c.buf.Reset()
	n := c.count
	c.count = 0
	return block, n
}
