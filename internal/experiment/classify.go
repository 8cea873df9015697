package experiment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClassification is returned when an instance matches no problem family,
// or matches conflicting ones
var ErrClassification = errors.New("cannot classify instance")

// Variant is the closed set of formulations an instance can be routed to
type Variant string

const (
	FJSPSDST  Variant = "FJSP_SDST"
	FJSPDet   Variant = "FJSP_DET"
	FJSPStoch Variant = "FJSP_STOCH"
	JSPOrFSP  Variant = "JSP_OR_FSP"
)

// Stochastic reports whether the variant fans out over realizations
func (v Variant) Stochastic() bool {
	return v == FJSPStoch
}

const (
	markerSetup    = "fjsp_sdst"
	markerFlexible = "fjsp"
	markerJobShop  = "jsp"
	markerFlowShop = "fsp"
	suffixFlexible = ".fjs"
)

// Classify maps an instance identifier to its variant. Matching is case
// insensitive and the first rule wins: the setup marker, then the flexible
// marker or a .fjs file (split by stoch), then the job shop or flow shop
// marker. A job shop or flow shop marker left over next to a flexible one is
// a conflict.
func Classify(instance string, stoch bool) (Variant, error) {
	id := strings.ToLower(strings.TrimSpace(instance))
	if id == "" {
		return "", fmt.Errorf("%w: empty instance identifier", ErrClassification)
	}

	switch {
	case strings.Contains(id, markerSetup):
		if marker := leftover(id, markerSetup, markerFlexible); marker != "" {
			return "", fmt.Errorf("%w: %q mixes setup-time and %s markers", ErrClassification, instance, marker)
		}
		return FJSPSDST, nil

	case strings.Contains(id, markerFlexible), strings.HasSuffix(id, suffixFlexible):
		if marker := leftover(id, markerFlexible); marker != "" {
			return "", fmt.Errorf("%w: %q mixes flexible and %s markers", ErrClassification, instance, marker)
		}
		if stoch {
			return FJSPStoch, nil
		}
		return FJSPDet, nil

	case strings.Contains(id, markerJobShop), strings.Contains(id, markerFlowShop):
		return JSPOrFSP, nil
	}
	return "", fmt.Errorf("%w: %q has no fjsp_sdst, fjsp, jsp or fsp marker", ErrClassification, instance)
}

// leftover masks the matched markers and returns a job shop or flow shop
// marker that is still present
func leftover(id string, matched ...string) string {
	for _, m := range matched {
		id = strings.ReplaceAll(id, m, "")
	}
	for _, m := range []string{markerJobShop, markerFlowShop} {
		if strings.Contains(id, m) {
			return m
		}
	}
	return ""
}
