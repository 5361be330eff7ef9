package trips

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"backend/geo"
)

// Resolution is the origin decision for one conversational turn.
type Resolution struct {
	// Origin is the device position to submit as the request origin,
	// or nil when the origin should come from the message text.
	Origin *geo.Position
	// NeedsLocation is set when a device position was required but
	// could not be acquired; the user must grant location access or
	// name a starting point.
	NeedsLocation bool
}

var (
	fromToPattern      = regexp.MustCompile(`(?i)\bfrom\s+(.+?)\s+to\s+\S`)
	fromPattern        = regexp.MustCompile(`(?i)\bfrom\s+\S`)
	destinationPattern = regexp.MustCompile(`(?i)\b(?:plan\s+(?:a\s+)?(?:trip|route)\s+)?to\s+\S`)
	currentLocPattern  = regexp.MustCompile(`(?i)\b(?:my\s+location|current\s+location|from\s+here|start(?:ing)?\s+(?:from\s+)?here)\b`)
)

// hasFromToClause reports whether the text names both endpoints, as in
// "from Sacramento to Portland". A from-argument that is itself a
// current-location phrase ("from here to Portland") does not count.
func hasFromToClause(text string) bool {
	m := fromToPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	origin := strings.ToLower(strings.TrimSpace(m[1]))
	switch origin {
	case "here", "my location", "current location":
		return false
	}
	return true
}

// wantsCurrentLocation reports whether the text explicitly asks to
// start at the device's position.
func wantsCurrentLocation(text string) bool {
	return currentLocPattern.MatchString(text)
}

// hasDestinationOnly reports whether the text names a destination
// without naming an origin.
func hasDestinationOnly(text string) bool {
	return destinationPattern.MatchString(text) && !fromPattern.MatchString(text)
}

// hasFromClause reports whether the text contains any "from ..."
// clause at all, including current-location phrasings.
func hasFromClause(text string) bool {
	return fromPattern.MatchString(text)
}

// OriginResolver decides whether a request's origin is the device
// position, using the message text and the cached fix.
type OriginResolver struct {
	devices DeviceSource
	opts    AcquireOptions
	log     *slog.Logger
}

// NewOriginResolver builds a resolver over the given device source.
func NewOriginResolver(devices DeviceSource, log *slog.Logger) *OriginResolver {
	if log == nil {
		log = slog.Default()
	}
	return &OriginResolver{
		devices: devices,
		opts:    DefaultAcquireOptions(),
		log:     log,
	}
}

// Resolve applies the precedence rules: an explicit "from A to B"
// contributes no device position; an explicit current-location phrase
// requires one; a destination-only request or a request with no from
// clause uses the device position when available. This is best-effort
// heuristics over natural language, not a parser.
func (r *OriginResolver) Resolve(ctx context.Context, text string) Resolution {
	if hasFromToClause(text) {
		return Resolution{}
	}

	required := wantsCurrentLocation(text)
	if !required && !hasDestinationOnly(text) && hasFromClause(text) {
		// A from clause we could not classify; leave the origin to the
		// provider's own text understanding.
		return Resolution{}
	}

	pos, err := r.devices.Current(ctx, r.opts)
	if err != nil {
		r.log.Warn("device position unavailable", "error", err, "required", required)
		return Resolution{NeedsLocation: !hasFromClause(text)}
	}
	return Resolution{Origin: &pos}
}
