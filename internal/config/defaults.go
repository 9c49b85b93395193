package config

// DefaultPlatformDomains are social networks, marketplaces, site builders,
// and directories that show up in ad and search results but are never the
// advertiser itself.
var DefaultPlatformDomains = []string{
	"facebook.com", "instagram.com", "linkedin.com", "twitter.com", "x.com",
	"tiktok.com", "youtube.com", "pinterest.com", "reddit.com", "google.com",
	"amazon.com", "amazon.ca", "ebay.com", "etsy.com", "walmart.com", "mercadolibre.com",
	"shopify.com", "myshopify.com", "wix.com", "wixsite.com", "squarespace.com",
	"wordpress.com", "weebly.com", "godaddysites.com", "medium.com",
	"yelp.com", "yelp.ca", "yellowpages.com", "yellowpages.ca", "groupon.com",
	"tripadvisor.com", "angi.com", "homestars.com", "opencare.com", "zocdoc.com",
}

// DefaultContentPatterns match articles and listicles rather than companies.
// They run against accent-folded, lowercased text.
var DefaultContentPatterns = []string{
	`^\s*(the\s+)?(top\s+)?\d+\s+(best|top|ways|tips|reasons|things|mistakes|mejores)\b`,
	`\bbest\s+\d+\b`,
	`\bhow\s+to\b`,
	`\bcomo\s+(elegir|hacer|encontrar)\b`,
	`\bguide\b`,
	`\bguia\b`,
	`\breviews?\b`,
	`\bvs\.?\s`,
	`\bwhat\s+is\b`,
}

// DefaultEnterpriseNames are advertisers too large to be SME prospects.
var DefaultEnterpriseNames = []string{
	"aspen dental", "heartland dental", "pacific dental", "smiledirectclub",
	"walmart", "procter & gamble", "unilever", "nestle", "coca-cola", "pepsico",
	"mcdonald's", "starbucks", "johnson & johnson", "l'oreal", "samsung",
	"grupo bimbo", "telcel", "shoppers drug mart", "loblaw",
}

// DefaultEnterpriseTerms signal enterprise-scale advertisers.
var DefaultEnterpriseTerms = []string{
	"multinational", "holding", "group empresarial", "grupo empresarial",
	"fortune 500", "publicly traded", "nyse:", "nasdaq:", "tsx:",
	"franchise opportunities", "global leader", "subsidiaries",
}
