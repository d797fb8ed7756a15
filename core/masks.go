package core

// bitset is a dense one-bit-per-node mask.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) get(i int) bool { return b[i>>6]&(1<<(uint(i)&63)) != 0 }

func (b bitset) set(i int) { b[i>>6] |= 1 << (uint(i) & 63) }

func (b bitset) clear(i int) { b[i>>6] &^= 1 << (uint(i) & 63) }

func (b bitset) reset() {
	for i := range b {
		b[i] = 0
	}
}

const (
	dirBits     = 3
	dirsPerWord = 64 / dirBits
	dirMask     = 1<<dirBits - 1

	// dirRoot marks an expanded node that was seeded as a source.
	dirRoot uint8 = 7
)

// dirArray stores one 3-bit direction per node, 21 to a word.
type dirArray []uint64

func newDirArray(n int) dirArray { return make(dirArray, (n+dirsPerWord-1)/dirsPerWord) }

func (a dirArray) get(i int) uint8 {
	w, off := i/dirsPerWord, uint(i%dirsPerWord)*dirBits
	return uint8(a[w] >> off & dirMask)
}

func (a dirArray) set(i int, v uint8) {
	w, off := i/dirsPerWord, uint(i%dirsPerWord)*dirBits
	a[w] = a[w]&^(dirMask<<off) | uint64(v&dirMask)<<off
}

func (a dirArray) reset() {
	for i := range a {
		a[i] = 0
	}
}
