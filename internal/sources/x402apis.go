package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultX402APIsURL = "https://x402apis.io/api/providers"
	// x402apis only lists Solana providers, so records without a network
	// default to it.
	x402APIsDefaultNetwork = "solana"
)

// X402APIsOptions parameterise the x402apis.io adapter.
type X402APIsOptions struct {
	BaseURL  string
	PageSize int
	Client   ClientOptions
	Networks NetworkTable
}

// X402APIs reads the x402apis.io provider registry.
type X402APIs struct {
	baseURL  string
	pageSize int
	networks NetworkTable
	http     *pageClient
	logger   zerolog.Logger
}

// NewX402APIs constructs the x402apis.io adapter.
func NewX402APIs(opts X402APIsOptions, logger zerolog.Logger) *X402APIs {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultX402APIsURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	networks := opts.Networks
	if networks == nil {
		networks = DefaultNetworks()
	}

	log := logger.With().Str("component", "source_x402apis").Logger()
	return &X402APIs{
		baseURL:  baseURL,
		pageSize: pageSize,
		networks: networks,
		http:     newPageClient(opts.Client, log),
		logger:   log,
	}
}

// Name identifies the source in stats and provenance.
func (x *X402APIs) Name() string { return "x402apis" }

// FetchEndpoints walks 1-based pages until the registry reports the last page
// or maxPages is reached.
func (x *X402APIs) FetchEndpoints(ctx context.Context, maxPages int) ([]SourceEndpoint, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	var endpoints []SourceEndpoint
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		pageURL, err := x.pageURL(pageNum)
		if err != nil {
			return endpoints, err
		}

		body, err := x.http.get(ctx, pageURL)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				x.logger.Warn().Err(err).Int("page", pageNum).Int("collected", len(endpoints)).Msg("returning partial listing")
				return endpoints, nil
			}
			return endpoints, fmt.Errorf("fetch x402apis page %d: %w", pageNum, err)
		}

		p := decodePage(body)
		if !p.Recognized {
			x.logger.Warn().Int("page", pageNum).Msg("unrecognised page shape, treating as empty")
		}
		if len(p.Records) == 0 {
			break
		}

		for _, raw := range p.Records {
			if ep, ok := x.transform(raw); ok {
				endpoints = append(endpoints, ep)
			}
		}

		if !x.hasMore(p, pageNum) {
			break
		}
	}

	x.logger.Info().Int("count", len(endpoints)).Msg("fetched x402apis endpoints")
	return endpoints, nil
}

func (x *X402APIs) pageURL(pageNum int) (string, error) {
	u, err := url.Parse(x.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse x402apis url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("limit", strconv.Itoa(x.pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (x *X402APIs) hasMore(p page, pageNum int) bool {
	if p.Total != nil && p.Limit != nil && *p.Limit > 0 {
		totalPages := (*p.Total + *p.Limit - 1) / *p.Limit
		return pageNum < totalPages
	}
	if pg := p.Pagination; pg != nil && pg.Total != nil && pg.Offset != nil {
		return *pg.Offset+len(p.Records) < *pg.Total
	}
	return len(p.Records) >= x.pageSize
}

type x402APIsProvider struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Endpoint    string     `json:"endpoint"`
	Description string     `json:"description"`
	Price       flexString `json:"price"`
	Network     string     `json:"network"`
	Wallet      string     `json:"wallet"`
}

func (x *X402APIs) transform(raw json.RawMessage) (SourceEndpoint, bool) {
	var provider x402APIsProvider
	if err := json.Unmarshal(raw, &provider); err != nil {
		x.logger.Debug().Err(err).Msg("skip undecodable provider")
		return SourceEndpoint{}, false
	}

	resourceURL := strings.TrimSpace(provider.URL)
	if resourceURL == "" {
		resourceURL = strings.TrimSpace(provider.Endpoint)
	}
	if resourceURL == "" {
		return SourceEndpoint{}, false
	}

	network := provider.Network
	if strings.TrimSpace(network) == "" {
		network = x402APIsDefaultNetwork
	}

	return SourceEndpoint{
		ResourceURL:    resourceURL,
		Description:    optionalString(provider.Description, provider.Name),
		PriceMicroUSDC: parsePrice(string(provider.Price)),
		Network:        x.networks.Normalize(network),
		PayToAddress:   normalizePayee(provider.Wallet),
		ProviderName:   optionalString(provider.Name),
		Source:         x.Name(),
		RawData:        append(json.RawMessage(nil), raw...),
	}, true
}

var _ Source = (*X402APIs)(nil)
