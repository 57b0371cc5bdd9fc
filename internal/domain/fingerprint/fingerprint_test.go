package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bitsFromString(s string) []byte {
	out := make([]byte, (len(s)+7)/8)
	for i, c := range s {
		if c == '1' {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func TestNew_PadsToMinimumLength(t *testing.T) {
	fp := New("a", bitsFromString("1111"), 4)
	assert.Equal(t, minBits, fp.Length)
	assert.Equal(t, 16, len(fp.Bits))
	assert.Equal(t, 4, fp.Popcount())
}

func TestBitSetClear(t *testing.T) {
	fp := New("a", bitsFromString("0000"), 128)
	require.False(t, fp.Bit(2))
	fp.SetBit(2)
	assert.True(t, fp.Bit(2))
	assert.Equal(t, 1, fp.Popcount())
	fp.SetBit(2) // idempotent
	assert.Equal(t, 1, fp.Popcount())
	fp.ClearBit(2)
	assert.False(t, fp.Bit(2))
	assert.Equal(t, 0, fp.Popcount())
}

func TestBit_OutOfRange(t *testing.T) {
	fp := New("a", bitsFromString("1111"), 128)
	assert.False(t, fp.Bit(-1))
	assert.False(t, fp.Bit(fp.Length))
}

func TestTanimoto_ExactMatch(t *testing.T) {
	a := New("a", bitsFromString("11110000"), 8)
	b := New("b", bitsFromString("11110000"), 8)
	assert.Equal(t, 1.0, a.Tanimoto(b))
}

func TestTanimoto_Disjoint(t *testing.T) {
	a := New("a", bitsFromString("11110000"), 8)
	b := New("b", bitsFromString("00001111"), 8)
	assert.Equal(t, 0.0, a.Tanimoto(b))
}

func TestTanimoto_ThresholdBoundary(t *testing.T) {
	a := New("a", bitsFromString("11111111"), 8)
	b := New("b", bitsFromString("11110000"), 8)
	assert.Equal(t, 1.0, a.Tanimoto(a))
	assert.InDelta(t, 0.5, a.Tanimoto(b), 1e-9)
}

func TestTanimoto_BothEmptyIsZeroNotNaN(t *testing.T) {
	a := New("a", bitsFromString("00000000"), 8)
	b := New("b", bitsFromString("00000000"), 8)
	assert.Equal(t, 0.0, a.Tanimoto(b))
}

func TestTanimoto_DifferentLengths_ExcessCountsTowardUnionOnly(t *testing.T) {
	short := New("short", bitsFromString("1111"), 4)
	long := New("long", bitsFromString("111100001111"), 12)
	// short has popcount 4, long has popcount 8; intersection over the first
	// 4 bits is 4, union is 8 (4 from short ∪ long's first 4, plus the 4
	// trailing bits of long that short doesn't have).
	got := short.Tanimoto(long)
	assert.InDelta(t, 4.0/8.0, got, 1e-9)
}

func TestTanimotoXOR_IsUpperBound(t *testing.T) {
	a := New("a", bitsFromString("1010101011110000"), 16)
	b := New("b", bitsFromString("1100110000001111"), 16)
	ab := a.Popcount() + b.Popcount()
	exact := a.Tanimoto(b)
	estimate := a.TanimotoXOR(b, ab)
	assert.GreaterOrEqual(t, estimate, exact)
}

func TestInitPopcountTable_Idempotent(t *testing.T) {
	InitPopcountTable()
	before := popcountTable
	InitPopcountTable()
	InitPopcountTable()
	assert.Equal(t, before, popcountTable)
	assert.Equal(t, 8, int(popcountTable[0xFF]))
	assert.Equal(t, 16, int(popcountTable[0xFFFF]))
}

func TestFold_Deterministic(t *testing.T) {
	fp := New("a", bitsFromString("110010101111000011001010"), 24)
	h1 := fp.hash
	fp.Fold()
	assert.Equal(t, h1, fp.hash)
}
