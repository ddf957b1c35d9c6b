package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over a fixed set of stripe indexes.
type ring struct {
	points *treemap.Map

	// first is the value at the lowest point, used when a hash wraps past the
	// highest one.
	first int
}

// newRing places replicas points on the ring for each of the n stripes.
func newRing(n, replicas int) *ring {
	points := treemap.NewWith(utils.Int64Comparator)

	seed := make([]byte, 12)
	for stripe := 0; stripe < n; stripe++ {
		binary.LittleEndian.PutUint64(seed, uint64(stripe))
		for replica := 0; replica < replicas; replica++ {
			binary.LittleEndian.PutUint32(seed[8:], uint32(replica))
			points.Put(hash(seed), stripe)
		}
	}

	r := &ring{points: points}
	if _, v := points.Min(); v != nil {
		r.first = v.(int)
	}
	return r
}

// stripe returns the stripe owning key.
func (r *ring) stripe(key []byte) int {
	if _, v := r.points.Ceiling(hash(key)); v != nil {
		return v.(int)
	}
	return r.first
}

func hash(b []byte) int64 {
	h, _ := murmur3.Sum128(b)
	return int64(h)
}
