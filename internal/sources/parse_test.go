package sources

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]*int64{
		"10000":  ptr(int64(10000)),
		" 250 ":  ptr(int64(250)),
		"0":      ptr(int64(0)),
		"1000.0": ptr(int64(1000)),
		"":       nil,
		"abc":    nil,
		"1.5":    nil,
		"-10":    nil,
		"1e400":  nil,
		"12abc":  nil,
	}
	for in, want := range cases {
		got := parsePrice(in)
		if want == nil {
			assert.Nil(t, got, "input %q", in)
			continue
		}
		require.NotNil(t, got, "input %q", in)
		assert.Equal(t, *want, *got, "input %q", in)
	}
}

func TestNetworkNormalize(t *testing.T) {
	table := DefaultNetworks()

	assert.Equal(t, "base", *table.Normalize("eip155:8453"))
	assert.Equal(t, "base-sepolia", *table.Normalize("eip155:84532"))
	assert.Equal(t, "solana", *table.Normalize("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"))
	assert.Equal(t, "base", *table.Normalize("base"))
	assert.Equal(t, "avalanche", *table.Normalize("AVALANCHE"))
	assert.Equal(t, "eip155:999999", *table.Normalize("EIP155:999999"))
	assert.Nil(t, table.Normalize("  "))

	fixture := NetworkTable{"chain:1": "one"}
	assert.Equal(t, "one", *fixture.Normalize("chain:1"))
	assert.Equal(t, "eip155:8453", *fixture.Normalize("eip155:8453"))
}

func TestNormalizePayee(t *testing.T) {
	got := normalizePayee(" 0x52908400098527886e0f7030069857d2e4169ee7 ")
	require.NotNil(t, got)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", *got)

	solana := normalizePayee("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	require.NotNil(t, solana)
	assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", *solana)

	assert.Nil(t, normalizePayee(""))
}

func TestDecodePageShapes(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		records    int
		recognized bool
	}{
		{"bare array", `[{"url":"a"},{"url":"b"}]`, 2, true},
		{"resources", `{"resources":[{"url":"a"}]}`, 1, true},
		{"data", `{"data":[{"url":"a"},{"url":"b"},{"url":"c"}]}`, 3, true},
		{"items with pagination", `{"items":[{"url":"a"}],"pagination":{"offset":0,"limit":1,"total":5}}`, 1, true},
		{"providers", `{"providers":[{"url":"a"}],"total":1,"page":1,"limit":100}`, 1, true},
		{"unknown object", `{"foo":"bar"}`, 0, false},
		{"scalar", `42`, 0, false},
		{"broken json", `{"items":[`, 0, false},
		{"empty", ``, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := decodePage([]byte(tc.body))
			assert.Len(t, p.Records, tc.records)
			assert.Equal(t, tc.recognized, p.Recognized)
		})
	}

	p := decodePage([]byte(`{"items":[{"url":"a"}],"pagination":{"offset":3,"limit":1,"total":5}}`))
	require.NotNil(t, p.Pagination)
	assert.Equal(t, 3, *p.Pagination.Offset)
	assert.Equal(t, 5, *p.Pagination.Total)
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
		D flexString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"100","b":250,"c":null,"d":{"x":1}}`), &v))
	assert.Equal(t, flexString("100"), v.A)
	assert.Equal(t, flexString("250"), v.B)
	assert.Equal(t, flexString(""), v.C)
	assert.Equal(t, flexString(""), v.D)
}

func TestRetryPolicyBackOff(t *testing.T) {
	bo := RetryPolicy{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second}.BackOff()
	assert.Equal(t, 2*time.Second, bo.NextBackOff())
	assert.Equal(t, 4*time.Second, bo.NextBackOff())
	assert.Equal(t, 5*time.Second, bo.NextBackOff())
	assert.Equal(t, 5*time.Second, bo.NextBackOff())
}

func ptr[T any](v T) *T { return &v }
