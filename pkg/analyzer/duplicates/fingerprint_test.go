package duplicates

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqHashes(n int, seed uint64) []uint64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.Uint64()
	}
	return out
}

func TestFingerprintTooShort(t *testing.T) {
	f := NewFingerprinter(15, 15)
	assert.Empty(t, f.Fingerprint(0, seqHashes(14, 1)))
	assert.Empty(t, f.Fingerprint(0, nil))
}

func TestFingerprintPartialRange(t *testing.T) {
	f := NewFingerprinter(15, 15)

	// 15..28 tokens give fewer than 15 window hashes: one partial range, one pick.
	for _, n := range []int{15, 20, 28} {
		fps := f.Fingerprint(3, seqHashes(n, uint64(n)))
		require.Len(t, fps, 1, "n=%d", n)
		assert.Equal(t, FileRef(3), fps[0].File)
		assert.Equal(t, 15, fps[0].End-fps[0].Start)
	}
}

func TestFingerprintShape(t *testing.T) {
	f := NewFingerprinter(10, 20)
	hashes := seqHashes(500, 7)
	fps := f.Fingerprint(1, hashes)
	require.NotEmpty(t, fps)

	windows := f.windowHashes(hashes)
	for i, fp := range fps {
		assert.Equal(t, 10, fp.End-fp.Start)
		assert.Equal(t, windows[fp.Start], fp.Hash)
		if i > 0 {
			assert.Greater(t, fp.Start, fps[i-1].Start, "positions strictly increase")
		}
	}

	// Winnowing keeps far fewer hashes than windows.
	assert.Less(t, len(fps), len(windows)/4)
}

func TestFingerprintEveryRangeHasSelection(t *testing.T) {
	const w, g = 5, 8
	f := NewFingerprinter(w, g)
	hashes := seqHashes(300, 11)
	fps := f.Fingerprint(0, hashes)
	windows := len(hashes) - w + 1

	selected := make(map[int]bool)
	for _, fp := range fps {
		selected[fp.Start] = true
	}
	for end := g - 1; end < windows; end++ {
		found := false
		for p := end - g + 1; p <= end; p++ {
			if selected[p] {
				found = true
				break
			}
		}
		assert.True(t, found, "range ending at %d has no fingerprint", end)
	}
}

func TestFingerprintTieBreaksRight(t *testing.T) {
	f := NewFingerprinter(3, 4)
	hashes := make([]uint64, 12) // all windows hash equal
	fps := f.Fingerprint(0, hashes)

	// 10 windows, ranges end at 3..9, each picking its rightmost position.
	require.Len(t, fps, 7)
	for i, fp := range fps {
		assert.Equal(t, 3+i, fp.Start)
	}
}

func TestFingerprintGuarantee(t *testing.T) {
	const w, g = 15, 15
	f := NewFingerprinter(w, g)
	shared := seqHashes(g+w-1, 42)

	a := append(append(seqHashes(37, 1), shared...), seqHashes(20, 2)...)
	b := append(append(seqHashes(5, 3), shared...), seqHashes(61, 4)...)

	fa := f.Fingerprint(0, a)
	fb := f.Fingerprint(1, b)

	inB := make(map[uint64]bool)
	for _, fp := range fb {
		inB[fp.Hash] = true
	}
	common := 0
	for _, fp := range fa {
		if inB[fp.Hash] {
			common++
		}
	}
	assert.Positive(t, common)
}

func TestWindowHashOrderSensitive(t *testing.T) {
	f := NewFingerprinter(3, 3)
	a := f.windowHashes([]uint64{1, 2, 3})
	b := f.windowHashes([]uint64{3, 2, 1})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0], b[0])
}

func TestWindowHashRollingMatchesDirect(t *testing.T) {
	const w = 6
	f := NewFingerprinter(w, w)
	hashes := seqHashes(40, 5)
	rolled := f.windowHashes(hashes)

	for i := range rolled {
		direct := f.windowHashes(hashes[i : i+w])
		require.Len(t, direct, 1)
		assert.Equal(t, direct[0], rolled[i], "window %d", i)
	}
}

func TestTokenHashes(t *testing.T) {
	hashes := TokenHashes([]Token{{Text: "$id"}, {Text: "+"}, {Text: "$id"}})
	require.Len(t, hashes, 3)
	assert.Equal(t, hashes[0], hashes[2])
	assert.NotEqual(t, hashes[0], hashes[1])
	assert.Equal(t, hashes, hashTexts([]string{"$id", "+", "$id"}))
}
