// internal/champion/fetch.go
package champion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultDataURL is the public champion feed the roster is built from.
const DefaultDataURL = "https://cdn.merakianalytics.com/riot/lol/resources/latest/en-US/champions.json"

var positionToLane = map[string]Lane{
	"TOP":     Top,
	"JUNGLE":  Jungle,
	"MIDDLE":  Mid,
	"BOTTOM":  ADC,
	"SUPPORT": Support,
}

// remoteChampion is one entry of the feed, keyed by champion id.
type remoteChampion struct {
	Name      string   `json:"name"`
	Icon      string   `json:"icon"`
	Positions []string `json:"positions"`
}

// Source yields the champion list a roster is built from.
type Source interface {
	Fetch(ctx context.Context) ([]Champion, error)
}

// Fetcher loads champions from the HTTP feed.
type Fetcher struct {
	URL    string
	Client *http.Client
}

// NewFetcher returns a Fetcher for url with a bounded HTTP timeout.
func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = DefaultDataURL
	}
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads and converts the feed.
func (f *Fetcher) Fetch(ctx context.Context) ([]Champion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build champion request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch champions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch champions: unexpected status %d", resp.StatusCode)
	}

	var feed map[string]remoteChampion
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode champions: %w", err)
	}
	return convert(feed), nil
}

// convert maps feed entries to champions, dropping entries with no playable
// lane or no icon. The result is sorted by name.
func convert(feed map[string]remoteChampion) []Champion {
	out := make([]Champion, 0, len(feed))
	for id, data := range feed {
		if c, ok := toChampion(id, data); ok {
			out = append(out, c)
		}
	}
	return NewRoster(out).All()
}

func toChampion(id string, data remoteChampion) (Champion, bool) {
	seen := make(map[Lane]bool, len(data.Positions))
	roles := make([]Lane, 0, len(data.Positions))
	for _, p := range data.Positions {
		lane, ok := positionToLane[p]
		if !ok || seen[lane] {
			continue
		}
		seen[lane] = true
		roles = append(roles, lane)
	}
	if len(roles) == 0 || data.Icon == "" {
		return Champion{}, false
	}
	return Champion{
		ID:    id,
		Name:  data.Name,
		Roles: roles,
		Icon:  ensureHTTPS(data.Icon),
	}, true
}

func ensureHTTPS(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
