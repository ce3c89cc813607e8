package bookv1

import "strings"

var separatorReplacer = strings.NewReplacer("-", "/", "_", "/")

// NormalizeSymbol trims and uppercases symbol, accepting "-" and "_" as pair separators.
//
//	NormalizeSymbol(" btc-usdt ") == "BTC/USDT"
func NormalizeSymbol(symbol string) string {
	return separatorReplacer.Replace(strings.ToUpper(strings.TrimSpace(symbol)))
}

// NormalizeSymbols normalizes every symbol, drops empty entries and removes duplicates
// while keeping the first occurrence order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
