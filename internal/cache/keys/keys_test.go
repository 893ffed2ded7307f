package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"

	"github.com/mohammed-shakir/wms-mosaic/internal/geom"
)

var bounds = geom.BBox{MinX: 512000, MinY: 6170000, MaxX: 513000, MaxY: 6171000}

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := Key("geodanmark_2023_12_5cm", "EPSG:25832", bounds, 4000, 4000)
	k2 := Key("geodanmark_2023_12_5cm", "EPSG:25832", bounds, 4000, 4000)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestDifference_BoundsAndSizeChangeKey(t *testing.T) {
	k1 := Key("l", "EPSG:25832", bounds, 4000, 4000)
	shifted := bounds
	shifted.MinX += 0.125
	if k2 := Key("l", "EPSG:25832", shifted, 4000, 4000); k1 == k2 {
		t.Fatal("shifted bounds must produce a different key")
	}
	if k3 := Key("l", "EPSG:25832", bounds, 2000, 4000); k1 == k3 {
		t.Fatal("different pixel size must produce a different key")
	}
	if k4 := Key("other", "EPSG:25832", bounds, 4000, 4000); k1 == k4 {
		t.Fatal("different layer must produce a different key")
	}
}

func TestLayerPrefix_CoversItsKeys(t *testing.T) {
	k := Key("my layer/x", "EPSG:4326", bounds, 10, 10)
	if !strings.HasPrefix(k, LayerPrefix("my layer/x")) {
		t.Fatalf("key %q does not start with its layer prefix %q", k, LayerPrefix("my layer/x"))
	}
}

func TestKey_ASCIISafeAndHashSuffixed(t *testing.T) {
	k := Key("göteborg åäö", "EPSG:3006", bounds, 256, 256)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:b=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :b=<hex64> suffix in key: %s", k)
	}
}
