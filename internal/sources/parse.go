package sources

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// flexString accepts either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects, arrays and booleans are not prices; treat as absent.
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}

// parsePrice converts an upstream amount into micro-units. Absent, negative,
// fractional or non-numeric values yield nil, never zero.
func parsePrice(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || !d.IsInteger() {
		return nil
	}
	if !d.BigInt().IsInt64() {
		return nil
	}
	v := d.IntPart()
	return &v
}

// normalizePayee canonicalises EVM addresses to their EIP-55 checksum form and
// passes other address formats through trimmed.
func normalizePayee(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if common.IsHexAddress(raw) {
		checksummed := common.HexToAddress(raw).Hex()
		return &checksummed
	}
	return &raw
}

func optionalString(values ...string) *string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return &v
		}
	}
	return nil
}

type pagination struct {
	Offset *int `json:"offset"`
	Limit  *int `json:"limit"`
	Total  *int `json:"total"`
}

type pageEnvelope struct {
	Resources     []json.RawMessage `json:"resources"`
	Data          []json.RawMessage `json:"data"`
	Items         []json.RawMessage `json:"items"`
	Providers     []json.RawMessage `json:"providers"`
	Pagination    *pagination       `json:"pagination"`
	NextPageToken string            `json:"nextPageToken"`
	Total         *int              `json:"total"`
	Page          *int              `json:"page"`
	Limit         *int              `json:"limit"`
}

// page is a decoded listing page, independent of the upstream envelope.
type page struct {
	Records       []json.RawMessage
	Pagination    *pagination
	NextPageToken string
	Total         *int
	Page          *int
	Limit         *int
	// Recognized is false when the payload matched none of the known shapes.
	Recognized bool
}

// decodePage understands a bare array, {resources}, {data}, {items, pagination}
// and {providers, total, page, limit}. Anything else is an empty page.
func decodePage(body []byte) page {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return page{}
	}

	if body[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(body, &records); err != nil {
			return page{}
		}
		return page{Records: records, Recognized: true}
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return page{}
	}

	p := page{
		Pagination:    env.Pagination,
		NextPageToken: env.NextPageToken,
		Total:         env.Total,
		Page:          env.Page,
		Limit:         env.Limit,
		Recognized:    true,
	}
	switch {
	case env.Resources != nil:
		p.Records = env.Resources
	case env.Data != nil:
		p.Records = env.Data
	case env.Items != nil:
		p.Records = env.Items
	case env.Providers != nil:
		p.Records = env.Providers
	default:
		return page{}
	}
	return p
}
