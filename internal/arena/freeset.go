package arena

import (
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
)

// freeSet holds freed slot ids. Not safe for concurrent use.
type freeSet struct {
	rb *roaring.Bitmap
}

func newFreeSet() *freeSet {
	return &freeSet{rb: roaring.New()}
}

func (f *freeSet) add(id uint32) bool {
	return f.rb.CheckedAdd(id)
}

func (f *freeSet) contains(id uint32) bool {
	return f.rb.Contains(id)
}

func (f *freeSet) len() uint64 {
	return f.rb.GetCardinality()
}

// take removes and returns a random member, so reuse order cannot be
// predicted from the free order.
func (f *freeSet) take() (uint32, bool) {
	n := f.rb.GetCardinality()
	if n == 0 {
		return 0, false
	}
	id, err := f.rb.Select(uint32(rand.Uint64N(n))) //nolint:gosec // n <= 2^32
	if err != nil {
		return 0, false
	}
	f.rb.Remove(id)
	return id, true
}
