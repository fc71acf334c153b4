package models

// ProviderType classifies how a watch provider offers a film.
type ProviderType string

const (
	ProviderStream ProviderType = "stream"
	ProviderRent   ProviderType = "rent"
	ProviderBuy    ProviderType = "buy"
)

// providerPriority orders provider types for deduplication: when TMDB lists
// the same provider under several categories we keep only the cheapest way
// to watch, stream over rent over buy.
var providerPriority = map[ProviderType]int{
	ProviderStream: 0,
	ProviderRent:   1,
	ProviderBuy:    2,
}

// Priority returns the dedup rank of the type; lower wins.
func (t ProviderType) Priority() int {
	if p, ok := providerPriority[t]; ok {
		return p
	}
	return len(providerPriority)
}

// WatchProvider is one offer for watching a film in one country.
type WatchProvider struct {
	ProviderID int64        `json:"providerId"`
	Name       string       `json:"name"`
	LogoPath   string       `json:"logoPath,omitempty"`
	Link       string       `json:"link,omitempty"`
	Type       ProviderType `json:"type"`
}

// ProviderResult is the outcome of a single TMDB watch-providers call.
type ProviderResult struct {
	Providers []WatchProvider
	Link      string
}
