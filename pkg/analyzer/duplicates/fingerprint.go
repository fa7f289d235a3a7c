package duplicates

import "github.com/cespare/xxhash/v2"

// rollingBase is the multiplier of the polynomial window hash (FNV-64 prime).
const rollingBase uint64 = 0x100000001B3

// TokenHashes hashes the normalized text of each token.
func TokenHashes(tokens []Token) []uint64 {
	hashes := make([]uint64, len(tokens))
	for i, tok := range tokens {
		hashes[i] = xxhash.Sum64String(tok.Text)
	}
	return hashes
}

func hashTexts(texts []string) []uint64 {
	hashes := make([]uint64, len(texts))
	for i, text := range texts {
		hashes[i] = xxhash.Sum64String(text)
	}
	return hashes
}

// Fingerprinter selects winnowed window hashes from token hash sequences.
type Fingerprinter struct {
	window    int
	guarantee int
}

// NewFingerprinter creates a fingerprinter for windows of window tokens,
// winnowed over ranges of guarantee consecutive window hashes.
func NewFingerprinter(window, guarantee int) *Fingerprinter {
	if window < 1 {
		window = 1
	}
	if guarantee < 1 {
		guarantee = 1
	}
	return &Fingerprinter{window: window, guarantee: guarantee}
}

// Window returns the window size in tokens.
func (f *Fingerprinter) Window() int {
	return f.window
}

// Fingerprint returns the selected fingerprints of one file in position order.
// Any run of at least guarantee+window-1 tokens shared by two files yields
// at least one fingerprint common to both.
func (f *Fingerprinter) Fingerprint(file FileRef, hashes []uint64) []Fingerprint {
	windows := f.windowHashes(hashes)
	if len(windows) == 0 {
		return nil
	}

	t := f.guarantee
	if t > len(windows) {
		t = len(windows)
	}

	out := make([]Fingerprint, 0, 2*len(windows)/(t+1)+1)
	deque := make([]int, 0, t)
	last := -1
	for i, h := range windows {
		// Pop larger-or-equal values so the rightmost minimum survives.
		for len(deque) > 0 && windows[deque[len(deque)-1]] >= h {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)

		if i < t-1 {
			continue
		}
		for deque[0] <= i-t {
			deque = deque[1:]
		}
		if pos := deque[0]; pos != last {
			out = append(out, Fingerprint{
				Hash:  windows[pos],
				Start: pos,
				End:   pos + f.window,
				File:  file,
			})
			last = pos
		}
	}
	return out
}

// windowHashes computes the mixed rolling hash of every window.
func (f *Fingerprinter) windowHashes(hashes []uint64) []uint64 {
	w := f.window
	if len(hashes) < w {
		return nil
	}

	// top = base^(w-1), the weight of the token leaving the window.
	top := uint64(1)
	for range w - 1 {
		top *= rollingBase
	}

	var h uint64
	for _, th := range hashes[:w] {
		h = h*rollingBase + th
	}

	out := make([]uint64, len(hashes)-w+1)
	out[0] = mix64(h)
	for i := w; i < len(hashes); i++ {
		h = (h-hashes[i-w]*top)*rollingBase + hashes[i]
		out[i-w+1] = mix64(h)
	}
	return out
}

// mix64 is the MurmurHash3 64-bit finalizer.
func mix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
