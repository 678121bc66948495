package sources

import "strings"

// NetworkTable maps chain identifiers (CAIP-2 style) to human network names.
type NetworkTable map[string]string

// DefaultNetworks returns the built-in chain id table.
func DefaultNetworks() NetworkTable {
	return NetworkTable{
		"eip155:1":     "ethereum",
		"eip155:10":    "optimism",
		"eip155:137":   "polygon",
		"eip155:8453":  "base",
		"eip155:42161": "arbitrum",
		"eip155:43113": "avalanche-fuji",
		"eip155:43114": "avalanche",
		"eip155:80002": "polygon-amoy",
		"eip155:84532": "base-sepolia",
		"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp": "solana",
		"solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1": "solana-devnet",
	}
}

// Normalize resolves a raw network identifier. Unknown values pass through
// lowercased; empty input yields nil.
func (t NetworkTable) Normalize(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if name, ok := t[raw]; ok {
		return &name
	}
	if name, ok := t[strings.ToLower(raw)]; ok {
		return &name
	}
	lowered := strings.ToLower(raw)
	return &lowered
}
