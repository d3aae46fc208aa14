package queue

import "errors"

var (
	// ErrQueueFull is returned by Insert when Len equals Capacity.
	ErrQueueFull = errors.New("queue full")

	// ErrAllocatorExhausted is returned when the allocator yields no node.
	ErrAllocatorExhausted = errors.New("allocator exhausted")

	// ErrInvalidIndex is returned for an insertion index outside 0..Len.
	ErrInvalidIndex = errors.New("invalid insertion index")
)
