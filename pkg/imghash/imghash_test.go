package imghash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// pngData renders a small checkerboard so the difference hash is
// non-degenerate.
func pngData(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			c := color.RGBA{B: 255, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestFromBytesDeterministic(t *testing.T) {
	data := pngData(t)

	first, err := FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes returned error: %v", err)
	}
	second, err := FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes returned error: %v", err)
	}
	if first != second {
		t.Fatalf("hashes differ for identical bytes: %d vs %d", first, second)
	}
}

func TestFromBytesRejectsGarbage(t *testing.T) {
	if _, err := FromBytes([]byte("not an image")); err == nil {
		t.Fatal("expected an error for undecodable bytes")
	}
	if _, err := FromBytes(nil); err == nil {
		t.Fatal("expected an error for empty bytes")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int
	}{
		{name: "identical", a: 42, b: 42, want: 0},
		{name: "one bit", a: 42, b: 43, want: 1},
		{name: "all bits", a: 0, b: -1, want: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Fatalf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	if Distance(7, -9) != Distance(-9, 7) {
		t.Fatal("distance is not symmetric")
	}
}
