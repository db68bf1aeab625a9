package synthetic

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// Frames are rendered small; only the proportions matter downstream.
const frameLongEdge = 512

func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripe := max(16, height/12)
	for y := 0; y < height; y += stripe * 2 {
		band := image.Rect(0, y, width, min(height, y+stripe))
		draw.Draw(img, band, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(8, width/32) {
		for y := 0; y < height; y++ {
			if x+y >= width {
				break
			}
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderSyntheticVideo(seed string) []byte {
	lines := []string{
		"Synthetic video placeholder",
		"Seed: " + seed,
		"Rendered video bytes are produced only by a real video backend.",
	}
	return []byte(strings.Join(lines, "\n"))
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// normalizeAspect returns frame dimensions for a "w:h" ratio, square when the
// ratio is missing or malformed.
func normalizeAspect(aspect string) (int, int) {
	w, h, ok := strings.Cut(strings.TrimSpace(aspect), ":")
	if !ok {
		return frameLongEdge, frameLongEdge
	}
	a, errA := strconv.Atoi(strings.TrimSpace(w))
	b, errB := strconv.Atoi(strings.TrimSpace(h))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return frameLongEdge, frameLongEdge
	}
	if a >= b {
		return frameLongEdge, max(1, frameLongEdge*b/a)
	}
	return max(1, frameLongEdge*a/b), frameLongEdge
}
