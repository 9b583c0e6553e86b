package imghash

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
)

// NearDuplicate is the Hamming distance at or under which two hashes are
// treated as the same image.
const NearDuplicate = 3

// FromBytes computes the 64-bit difference hash of an encoded image.
func FromBytes(data []byte) (int64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("compute hash: %w", err)
	}
	return int64(hash.GetHash()), nil
}

// Distance returns the Hamming distance between two difference hashes.
func Distance(a, b int64) int {
	ha := goimagehash.NewImageHash(uint64(a), goimagehash.DHash)
	hb := goimagehash.NewImageHash(uint64(b), goimagehash.DHash)

	d, err := ha.Distance(hb)
	if err != nil {
		// Only differing hash kinds error; both are DHash.
		return 64
	}
	return d
}
