package pool

import (
	"fmt"
	"math/bits"
	"sync"
)

// BucketedBufferPool provides an O(1) lookup for reusable byte slices.
// Buffers are grouped into power-of-two size buckets so that a request for
// any size is served from the smallest bucket that can hold it. The blob
// codec borrows copy buffers from here instead of allocating per object.
type BucketedBufferPool struct {
	minBucketExp int
	maxBucketExp int
	maxPoolSize  int64
	pools        []sync.Pool
}

// NewBucketedBufferPool creates a pool based on raw size boundaries.
// Both minSize and maxSize MUST be powers of two (e.g., 1024, 4096, 1048576).
func NewBucketedBufferPool(minSize, maxSize int64) *BucketedBufferPool {
	if !isPowerOfTwo(minSize) {
		panic(fmt.Sprintf("minSize %d must be a power of two", minSize))
	}
	if !isPowerOfTwo(maxSize) {
		panic(fmt.Sprintf("maxSize %d must be a power of two", maxSize))
	}
	if maxSize <= minSize {
		panic("maxSize must be greater than minSize")
	}

	// bits.TrailingZeros64 yields the exponent of a power-of-two value.
	minExp := bits.TrailingZeros64(uint64(minSize))
	maxExp := bits.TrailingZeros64(uint64(maxSize))

	bp := &BucketedBufferPool{
		minBucketExp: minExp,
		maxBucketExp: maxExp,
		maxPoolSize:  int64(1) << maxExp,
		pools:        make([]sync.Pool, maxExp+1),
	}

	for i := minExp; i <= maxExp; i++ {
		size := int64(1) << i
		bp.pools[i].New = func() any {
			b := make([]byte, int(size))
			return &b
		}
	}
	return bp
}

// Get retrieves a pointer to a byte slice of at least 'size'.
func (bp *BucketedBufferPool) Get(size int64) *[]byte {
	// make([]byte, 0) is backed by runtime.zerobase and should not be pooled.
	if size <= 0 {
		b := make([]byte, 0)
		return &b
	}

	// Oversized requests fall back to a one-off allocation that Put discards.
	if size > bp.maxPoolSize {
		b := make([]byte, size)
		return &b
	}

	exp := bucketExpFor(size)
	if exp < bp.minBucketExp {
		exp = bp.minBucketExp
	}
	bufPtr := bp.pools[exp].Get().(*[]byte)
	*bufPtr = (*bufPtr)[:size]
	return bufPtr
}

// Put returns a buffer to its bucket. Buffers that did not originate from a
// bucket (zero-length or oversized) are dropped for the GC to collect.
func (bp *BucketedBufferPool) Put(bufPtr *[]byte) {
	if bufPtr == nil {
		return
	}
	capacity := int64(cap(*bufPtr))
	if capacity == 0 || capacity > bp.maxPoolSize || !isPowerOfTwo(capacity) {
		return
	}

	exp := bits.TrailingZeros64(uint64(capacity))
	if exp < bp.minBucketExp || exp > bp.maxBucketExp {
		return
	}

	// Restore full capacity so the next Get can reslice freely.
	*bufPtr = (*bufPtr)[:capacity]
	bp.pools[exp].Put(bufPtr)
}

// bucketExpFor returns the exponent of the smallest power-of-two bucket
// that can hold 'size' bytes.
func bucketExpFor(size int64) int {
	if isPowerOfTwo(size) {
		return bits.TrailingZeros64(uint64(size))
	}
	return bits.Len64(uint64(size))
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}
