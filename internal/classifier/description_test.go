package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDescriptionFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://api.weather-pro.com/v1/current-weather/forecast", "Current Weather Forecast service by Weather Pro"},
		{"https://my-tools-api.vercel.app/api/x402/qr-code", "Code service by Tools"},
		{"https://www.acme-labs.io/token_price.json", "Token Price service by Acme Labs"},
		{"https://api.com/weather/today", "Weather Today API"},
		{"https://10.0.0.1/lookup/domain", "Lookup Domain API"},
		{"https://data.example.com/one/two/three/four", "One Two Three service by Example"},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			got := GenerateDescriptionFromURL(tc.url)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestGenerateDescriptionFromURLEmpty(t *testing.T) {
	assert.Nil(t, GenerateDescriptionFromURL("https://example.com/"))
	assert.Nil(t, GenerateDescriptionFromURL("https://example.com/api/v2/x402"))
	assert.Nil(t, GenerateDescriptionFromURL("not a url"))
}
