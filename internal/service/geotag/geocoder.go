package geotag

import (
	"context"
	"fmt"
	"net/http"
	"time"

	geo "github.com/kellydunn/golang-geo"
)

// MapsGeocoder resolves addresses through the Google geocoding API.
type MapsGeocoder struct {
	coder *geo.GoogleGeocoder
}

// NewMapsGeocoder configures the package-level key and endpoint of golang-geo.
// An empty endpoint keeps the library default.
func NewMapsGeocoder(apiKey, endpoint string, timeout time.Duration) *MapsGeocoder {
	geo.SetGoogleAPIKey(apiKey)
	if endpoint != "" {
		geo.SetGoogleGeocodeURL(endpoint)
	}
	return &MapsGeocoder{coder: &geo.GoogleGeocoder{HttpClient: &http.Client{
		Timeout:   timeout,
		Transport: statusTransport{next: http.DefaultTransport},
	}}}
}

// ReverseGeocode runs the lookup and gives up when ctx ends first.
func (g *MapsGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	type result struct {
		address string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		address, err := g.coder.ReverseGeocode(geo.NewPoint(lat, lon))
		done <- result{address, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", &GeocodeError{Status: "lookup", Err: res.err}
		}
		return res.address, nil
	case <-ctx.Done():
		return "", &GeocodeError{Status: "timeout", Err: ctx.Err()}
	}
}

// statusTransport turns non-2xx responses into errors; the geocoding
// library decodes any body it receives.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("geocoding service returned %s", resp.Status)
	}
	return resp, nil
}
