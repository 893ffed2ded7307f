// Package layers maps service shorthand to concrete WMS layer names, so
// callers can say "dk 2023 at 12.5cm" instead of memorizing layer strings.
package layers

import (
	"fmt"
	"strings"
)

// Name builds the layer name for a service's yearly imagery. Only the
// Danish GeoDanmark orthophoto service is known. Season defaults to spring;
// bands defaults to rgb, with cir selecting the color-infrared layer.
func Name(service string, year int, res float64, season, bands string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(service)) {
	case "dk", "denmark":
	default:
		return "", fmt.Errorf("layers: unknown service %q (known: dk)", service)
	}
	if year < 2000 || year > 2100 {
		return "", fmt.Errorf("layers: implausible year %d", year)
	}

	resStr := "12_5"
	if res == 0.1 {
		resStr = "10"
	}

	var suffix string
	switch strings.ToLower(strings.TrimSpace(bands)) {
	case "", "rgb":
	case "cir":
		suffix = "_cir"
	default:
		return "", fmt.Errorf("layers: unknown band order %q (known: rgb, cir)", bands)
	}

	switch strings.ToLower(strings.TrimSpace(season)) {
	case "", "spring":
	default:
		return "", fmt.Errorf("layers: no %q imagery for service dk (known: spring)", season)
	}

	return fmt.Sprintf("geodanmark_%d_%scm%s", year, resStr, suffix), nil
}
