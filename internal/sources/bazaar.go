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

const defaultBazaarURL = "https://api.cdp.coinbase.com/platform/v2/x402/discovery/resources"

// BazaarOptions parameterise the Bazaar discovery adapter.
type BazaarOptions struct {
	BaseURL  string
	PageSize int
	Client   ClientOptions
	Networks NetworkTable
}

// Bazaar reads the Coinbase x402 discovery ("Bazaar") listing.
type Bazaar struct {
	baseURL  string
	pageSize int
	networks NetworkTable
	http     *pageClient
	logger   zerolog.Logger
}

// NewBazaar constructs a Bazaar adapter.
func NewBazaar(opts BazaarOptions, logger zerolog.Logger) *Bazaar {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBazaarURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	networks := opts.Networks
	if networks == nil {
		networks = DefaultNetworks()
	}

	log := logger.With().Str("component", "source_bazaar").Logger()
	return &Bazaar{
		baseURL:  baseURL,
		pageSize: pageSize,
		networks: networks,
		http:     newPageClient(opts.Client, log),
		logger:   log,
	}
}

// Name identifies the source in stats and provenance.
func (b *Bazaar) Name() string { return "bazaar" }

// FetchEndpoints pages through the listing until the upstream runs dry or
// maxPages pages were read. Exhausted rate-limit retries end the walk with the
// pages collected so far.
func (b *Bazaar) FetchEndpoints(ctx context.Context, maxPages int) ([]SourceEndpoint, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	var (
		endpoints []SourceEndpoint
		offset    int
		token     string
	)

	for pageNum := 0; pageNum < maxPages; pageNum++ {
		pageURL, err := b.pageURL(offset, token)
		if err != nil {
			return endpoints, err
		}

		body, err := b.http.get(ctx, pageURL)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				b.logger.Warn().Err(err).Int("page", pageNum+1).Int("collected", len(endpoints)).Msg("returning partial listing")
				return endpoints, nil
			}
			return endpoints, fmt.Errorf("fetch bazaar page %d: %w", pageNum+1, err)
		}

		p := decodePage(body)
		if !p.Recognized {
			b.logger.Warn().Int("page", pageNum+1).Msg("unrecognised page shape, treating as empty")
		}
		if len(p.Records) == 0 {
			break
		}

		for _, raw := range p.Records {
			ep, ok := b.transform(raw)
			if !ok {
				continue
			}
			endpoints = append(endpoints, ep)
		}

		more, nextOffset := b.advance(p, offset)
		if !more {
			break
		}
		offset = nextOffset
		token = p.NextPageToken
	}

	b.logger.Info().Int("count", len(endpoints)).Msg("fetched bazaar endpoints")
	return endpoints, nil
}

func (b *Bazaar) pageURL(offset int, token string) (string, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse bazaar url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(b.pageSize))
	if token != "" {
		q.Set("pageToken", token)
	} else {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// advance decides whether another page exists and where it starts.
func (b *Bazaar) advance(p page, offset int) (bool, int) {
	if p.NextPageToken != "" {
		return true, offset + len(p.Records)
	}
	if pg := p.Pagination; pg != nil && pg.Total != nil {
		start := offset
		if pg.Offset != nil {
			start = *pg.Offset
		}
		next := start + len(p.Records)
		return next < *pg.Total, next
	}
	if len(p.Records) < b.pageSize {
		return false, offset
	}
	return true, offset + len(p.Records)
}

type paymentRequirements struct {
	Scheme            string     `json:"scheme"`
	Network           string     `json:"network"`
	MaxAmountRequired flexString `json:"maxAmountRequired"`
	PayTo             string     `json:"payTo"`
	Asset             string     `json:"asset"`
	Description       string     `json:"description"`
}

type bazaarResource struct {
	URL            string                `json:"url"`
	Resource       string                `json:"resource"`
	Description    string                `json:"description"`
	PaymentDetails *paymentRequirements  `json:"paymentDetails"`
	Accepts        []paymentRequirements `json:"accepts"`
	Provider       *struct {
		Name string `json:"name"`
	} `json:"provider"`
}

func (b *Bazaar) transform(raw json.RawMessage) (SourceEndpoint, bool) {
	var res bazaarResource
	if err := json.Unmarshal(raw, &res); err != nil {
		b.logger.Debug().Err(err).Msg("skip undecodable bazaar resource")
		return SourceEndpoint{}, false
	}

	resourceURL := strings.TrimSpace(res.URL)
	if resourceURL == "" {
		resourceURL = strings.TrimSpace(res.Resource)
	}
	if resourceURL == "" {
		return SourceEndpoint{}, false
	}

	var pay paymentRequirements
	switch {
	case res.PaymentDetails != nil:
		pay = *res.PaymentDetails
	case len(res.Accepts) > 0:
		pay = res.Accepts[0]
	}

	ep := SourceEndpoint{
		ResourceURL:    resourceURL,
		Description:    optionalString(res.Description, pay.Description),
		PriceMicroUSDC: parsePrice(string(pay.MaxAmountRequired)),
		Network:        b.networks.Normalize(pay.Network),
		PayToAddress:   normalizePayee(pay.PayTo),
		Source:         b.Name(),
		RawData:        append(json.RawMessage(nil), raw...),
	}
	if res.Provider != nil {
		ep.ProviderName = optionalString(res.Provider.Name)
	}
	return ep, true
}

var _ Source = (*Bazaar)(nil)
