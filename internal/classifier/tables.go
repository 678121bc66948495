package classifier

// CategoryDef is one entry of the category taxonomy together with the signals
// that point at it. Declaration order is the tie-break order.
type CategoryDef struct {
	Slug         string
	Name         string
	Description  string
	Keywords     []string
	PathPatterns []string
}

// TagDef attaches Name to any resource whose analyzed text matches Pattern.
type TagDef struct {
	Name    string
	Pattern string
}

// Tables holds every fixed lookup the classifier uses. Tests substitute
// smaller fixtures.
type Tables struct {
	Categories []CategoryDef
	// Domains maps a bare host (no "www.") to a category slug.
	Domains map[string]string
	Tags    []TagDef
}

// DefaultTables returns the built-in taxonomy.
func DefaultTables() Tables {
	return Tables{
		Categories: []CategoryDef{
			{
				Slug:        "llm-inference",
				Name:        "LLM Inference",
				Description: "Language model completions, chat and embeddings",
				Keywords: []string{
					"llm", "gpt", "claude", "chat", "completion", "text generation", "language model",
					"ai model", "inference", "prompt", "embedding", "openai", "anthropic", "mistral",
					"llama", "gemini",
				},
				PathPatterns: []string{
					`(?i)/(chat|completions?|llm|inference|embeddings?)(/|$|\?)`,
					`(?i)/v\d+/(messages|responses|generate)(/|$|\?)`,
					`(?i)/(ask|summari[sz]e|translate)(/|$|\?)`,
				},
			},
			{
				Slug:        "image-generation",
				Name:        "Image Generation",
				Description: "Text-to-image and image editing models",
				Keywords: []string{
					"image", "picture", "photo", "dall-e", "dalle", "stable diffusion", "midjourney",
					"text-to-image", "text to image", "image generation", "generate image", "art",
					"illustration", "flux",
				},
				PathPatterns: []string{
					`(?i)/(images?|img|txt2img|text-to-image)(/|$|\?)`,
					`(?i)/(generate|create)[-_]?(image|art|picture)`,
				},
			},
			{
				Slug:        "data-feeds",
				Name:        "Data Feeds",
				Description: "Market prices, weather, news and other live data",
				Keywords: []string{
					"price", "prices", "market data", "feed", "ticker", "quote", "weather", "news",
					"stock", "forex", "exchange rate", "oracle", "data feed",
				},
				PathPatterns: []string{
					`(?i)/(prices?|quotes?|ticker|ohlcv?|candles?)(/|$|\?)`,
					`(?i)/(weather|forecast|news|feeds?)(/|$|\?)`,
				},
			},
			{
				Slug:        "security",
				Name:        "Security",
				Description: "Audits, scanners and risk scoring",
				Keywords: []string{
					"security", "audit", "scan", "verify", "verification", "wallet check",
					"contract scan", "vulnerability", "risk", "malware", "phishing", "scam",
				},
				PathPatterns: []string{
					`(?i)/(audit|scan|risk|screen(ing)?)(/|$|\?)`,
					`(?i)/(honeypot|rug[-_]?check|phishing|malware)`,
				},
			},
			{
				Slug:        "search",
				Name:        "Search",
				Description: "Web and knowledge search",
				Keywords: []string{
					"search", "find", "lookup", "query", "google", "bing", "web search",
					"internet search", "serp",
				},
				PathPatterns: []string{
					`(?i)/(search|serp|lookup|query)(/|$|\?)`,
				},
			},
			{
				Slug:        "utilities",
				Name:        "Utilities",
				Description: "Conversion, encoding and other developer tools",
				Keywords: []string{
					"qr", "qr code", "url", "shortener", "shorten", "convert", "converter", "encode",
					"decode", "hash", "utility", "tool", "resize", "compress",
				},
				PathPatterns: []string{
					`(?i)/(qr|qrcode|shorten|convert|encode|decode|hash|resize|compress)(/|$|\?)`,
				},
			},
			{
				Slug:        "defi",
				Name:        "DeFi",
				Description: "Swaps, liquidity, lending and yield",
				Keywords: []string{
					"defi", "swap", "pool", "liquidity", "yield", "apy", "apr", "stake", "staking",
					"lending", "borrow", "trading", "dex", "amm", "uniswap", "aave",
				},
				PathPatterns: []string{
					`(?i)/(swap|pools?|liquidity|yields?|stak(e|ing)|lend(ing)?|borrow)(/|$|\?)`,
				},
			},
			{
				Slug:        "social",
				Name:        "Social",
				Description: "Twitter/X, Farcaster and other social graph data",
				Keywords: []string{
					"twitter", "x.com", "tweet", "farcaster", "lens", "social", "profile", "follower",
					"post", "feed", "timeline", "mention",
				},
				PathPatterns: []string{
					`(?i)/(tweets?|users?/[^/]+/followers|profiles?|casts?|timeline)(/|$|\?)`,
				},
			},
		},
		Domains: map[string]string{
			"api.openai.com":            "llm-inference",
			"api.anthropic.com":         "llm-inference",
			"openrouter.ai":             "llm-inference",
			"api.mistral.ai":            "llm-inference",
			"api.together.xyz":          "llm-inference",
			"api.replicate.com":         "image-generation",
			"api.stability.ai":          "image-generation",
			"fal.run":                   "image-generation",
			"api.coingecko.com":         "data-feeds",
			"pro-api.coinmarketcap.com": "data-feeds",
			"api.openweathermap.org":    "data-feeds",
			"newsapi.org":               "data-feeds",
			"api.gopluslabs.io":         "security",
			"api.honeypot.is":           "security",
			"api.tavily.com":            "search",
			"api.exa.ai":                "search",
			"serpapi.com":               "search",
			"api.1inch.dev":             "defi",
			"api.0x.org":                "defi",
			"api.neynar.com":            "social",
			"api.twitter.com":           "social",
			"api.x.com":                 "social",
		},
		Tags: []TagDef{
			{Name: "crypto", Pattern: `(?i)crypto|blockchain|web3|token|nft|\beth\b|\bsol\b|\bbtc\b`},
			{Name: "ai", Pattern: `(?i)\bai\b|artificial intelligence|machine learning|\bml\b|neural`},
			{Name: "realtime", Pattern: `(?i)real-?time|\blive\b|streaming`},
			{Name: "free", Pattern: `(?i)\bfree\b|no cost`},
			{Name: "premium", Pattern: `(?i)premium|\bpaid\b|subscription`},
			{Name: "api", Pattern: `(?i)\bapi\b|\brest\b|graphql`},
		},
	}
}
