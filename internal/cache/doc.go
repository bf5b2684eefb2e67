// Package cache assigns cache blocks to block keys.
//
// The cache texture is a 3D grid of equally sized slots. A slot is bound to
// at most one Key at a time; binding a new key when the grid is full evicts
// the least recently used key and reuses its slot.
//
// Slot layout:
//
//	flat index  0            reserved (out-of-bounds sentinel)
//	flat index  1..reserved-1 reserved
//	flat index  reserved..   handed out in order, x fastest
//
// Once every free slot is bound, Add only recycles slots of evicted keys, so
// Len never exceeds Capacity.
package cache
