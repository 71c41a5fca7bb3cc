package montage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// DefaultSesameURL is the CDS Sesame name-resolution endpoint.
const DefaultSesameURL = "https://cds.unistra.fr/cgi-bin/nph-sesame"

// Resolver turns a region center — either an object name like "M17" or a
// decimal "RA DEC" pair — into coordinates in decimal degrees. Object
// names go to a Sesame-compatible lookup service.
type Resolver struct {
	BaseURL string
	Client  *resty.Client
}

// NewResolver creates a resolver against the default lookup service.
func NewResolver() *Resolver {
	return &Resolver{
		BaseURL: DefaultSesameURL,
		Client:  resty.New(),
	}
}

// Resolve returns the (ra, dec) for center. A parsable decimal pair is
// returned directly without touching the network.
func (r *Resolver) Resolve(ctx context.Context, center string) (float64, float64, error) {
	if ra, dec, ok := parseCoordinates(center); ok {
		return ra, dec, nil
	}

	resp, err := r.Client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/-op/SN?%s", r.BaseURL, url.QueryEscape(center)))
	if err != nil {
		return 0, 0, fmt.Errorf("could not resolve object name %q: %w", center, err)
	}
	if resp.IsError() {
		return 0, 0, fmt.Errorf("could not resolve object name %q: lookup service returned %s",
			center, resp.Status())
	}

	ra, dec, ok := parseSesame(resp.String())
	if !ok {
		return 0, 0, fmt.Errorf("could not resolve object name %q: no position in service reply", center)
	}
	return ra, dec, nil
}

// parseCoordinates accepts "RA DEC" as two decimal-degree floats.
func parseCoordinates(center string) (float64, float64, bool) {
	parts := strings.Fields(center)
	if len(parts) != 2 {
		return 0, 0, false
	}
	ra, err1 := strconv.ParseFloat(parts[0], 64)
	dec, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return ra, dec, true
}

// parseSesame scans a plain-text Sesame reply for the "%J <ra> <dec>"
// position line.
func parseSesame(body string) (float64, float64, bool) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "%J ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		ra, err1 := strconv.ParseFloat(fields[1], 64)
		dec, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		return ra, dec, true
	}
	return 0, 0, false
}
