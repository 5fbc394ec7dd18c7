package buddy

import (
	"testing"

	"rv32kern/internal/kconfig"
)

// FuzzAllocFreeSequence allocates two blocks of arbitrary orders from a
// single max-order region, checks that the two live allocations do not
// share an address and that the first carries the order its size
// rounds to, then frees both and checks that every free-list entry has
// consistent metadata and is aligned to its order. Seeds cover small,
// equal and maximum-order pairs.
func FuzzAllocFreeSequence(f *testing.F) {
	f.Add(uint8(0), uint8(1))
	f.Add(uint8(1), uint8(0))
	f.Add(uint8(3), uint8(3))
	f.Add(uint8(kconfig.MaxOrder), uint8(kconfig.MaxOrder))

	f.Fuzz(func(t *testing.T, orderA, orderB uint8) {
		a := newTestAllocator(t, 1<<kconfig.MaxOrder)

		sizeA := uintptr(kconfig.MinBlock) << (orderA % (kconfig.MaxOrder + 1))
		sizeB := uintptr(kconfig.MinBlock) << (orderB % (kconfig.MaxOrder + 1))

		pA := a.Alloc(sizeA)
		pB := a.Alloc(sizeB)

		if pA != nil && pB != nil && pA == pB {
			t.Fatalf("two live allocations must never alias: %v", pA)
		}

		if pA != nil {
			blockA := uint16((uintptr(pA) - uintptr(a.region.Addr)) / kconfig.MinBlock)
			if a.metadata[blockA].order() != log2(nextPowerOfTwo(maxUintptr(sizeA, kconfig.MinBlock)))-log2(kconfig.MinBlock) {
				t.Fatalf("allocation order mismatch for a %d-byte request", sizeA)
			}
		}

		if pA != nil {
			a.Free(pA)
		}
		if pB != nil {
			a.Free(pB)
		}

		// every in-use free-list entry must be consistent and
		// naturally aligned to its own order, regardless of the
		// sequence that produced it.
		for order := uint8(0); order <= kconfig.MaxOrder; order++ {
			for _, idx := range a.freeListIndices(order) {
				m := a.metadata[idx]
				if m.allocated() || !m.onFreeList() || m.order() != order {
					t.Fatalf("inconsistent metadata %v for block %d at order %d", m, idx, order)
				}
				if uint(idx)%(1<<order) != 0 {
					t.Fatalf("block %d on order %d is misaligned", idx, order)
				}
			}
		}
	})
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}
