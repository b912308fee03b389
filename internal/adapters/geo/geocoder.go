package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mberthe/chorus/internal/core"
)

// HTTPGeocoder resolves place references against an external geocoding
// endpoint expected to answer {"lat": .., "lng": ..}.
type HTTPGeocoder struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPGeocoder(baseURL string) *HTTPGeocoder {
	return &HTTPGeocoder{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *HTTPGeocoder) Coords(ctx context.Context, placeID string) (float64, float64, error) {
	if placeID == "" {
		return 0, 0, fmt.Errorf("%w: place reference is required", core.ErrValidation)
	}

	endpoint := fmt.Sprintf("%s?place=%s", g.BaseURL, url.QueryEscape(placeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, core.ExternalFailure("geocode request", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, core.ExternalFailure("geocode call", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, core.ExternalFailure("geocode call", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, core.ExternalFailure("geocode decode", err)
	}
	return out.Lat, out.Lng, nil
}
