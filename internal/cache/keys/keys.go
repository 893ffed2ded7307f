// Package keys builds deterministic cache keys for fetched tiles.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

// Key identifies one tile request: layer, CRS, geo bounds and pixel size.
// The bounds go into the key only through a hash of their canonical text so
// keys stay short and ASCII-safe regardless of coordinate magnitudes.
func Key(layer, crs string, bounds geom.BBox, width, height int) string {
	layerNorm := sanitize(strings.TrimSpace(layer))
	crsNorm := sanitize(strings.TrimSpace(crs))

	canonical := fmt.Sprintf("%.9f,%.9f,%.9f,%.9f", bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	sum := xxhash.Sum64String(canonical)

	return fmt.Sprintf("%s%s:%dx%d:b=%016x", LayerPrefix(layerNorm), crsNorm, width, height, sum)
}

// LayerPrefix is the common prefix of every key for one layer; invalidation
// purges by this prefix.
func LayerPrefix(layer string) string {
	return "tile:" + sanitize(strings.TrimSpace(layer)) + ":"
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
