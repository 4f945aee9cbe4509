package conflict

// opposingPattern names a known pair of mutually exclusive technical
// stances and the keywords that signal each side.
type opposingPattern struct {
	name  string
	label string
	sides map[string][]string
}

// opposingPatterns is the fixed lookup table scanned against
// concern/suggestion text. Keywords are matched as lowercase
// substrings.
var opposingPatterns = []opposingPattern{
	{
		name:  "sync_vs_async",
		label: "Sync Vs Async",
		sides: map[string][]string{
			"sync":  {"synchronous", "sync", "real-time", "immediate", "blocking"},
			"async": {"asynchronous", "async", "eventual consistency", "non-blocking", "queue"},
		},
	},
	{
		name:  "monolith_vs_microservices",
		label: "Monolith Vs Microservices",
		sides: map[string][]string{
			"monolith":      {"monolithic", "single application", "tightly coupled"},
			"microservices": {"microservices", "distributed", "loosely coupled", "service mesh"},
		},
	},
	{
		name:  "sql_vs_nosql",
		label: "Sql Vs Nosql",
		sides: map[string][]string{
			"sql":   {"relational", "sql", "acid", "normalized"},
			"nosql": {"nosql", "document store", "key-value", "eventually consistent"},
		},
	},
	{
		name:  "rest_vs_graphql",
		label: "Rest Vs Graphql",
		sides: map[string][]string{
			"rest":    {"rest", "restful", "resource-based"},
			"graphql": {"graphql", "query language", "single endpoint"},
		},
	},
	{
		name:  "cost_vs_performance",
		label: "Cost Vs Performance",
		sides: map[string][]string{
			"cost_optimized":        {"cost-effective", "economical", "budget", "cheaper"},
			"performance_optimized": {"high performance", "low latency", "fast", "optimized for speed"},
		},
	},
}
