package market

import "context"

// Stock is one row of the quote list. Symbol is the stable identity.
type Stock struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Source returns the full ordered quote list.
type Source interface {
	FetchStocks(ctx context.Context) ([]Stock, error)
}

// SameQuote reports whether the refreshed numeric fields are unchanged.
func (s *Stock) SameQuote(o Stock) bool {
	return s.Price == o.Price && s.Change == o.Change && s.ChangePercent == o.ChangePercent
}

// Merge folds fresh into old and returns the new list. Unchanged rows keep
// their pointer; changed rows get a new *Stock with only price, change and
// changePercent replaced; rows missing from fresh are kept; symbols seen for
// the first time are appended in fresh order, once per symbol. old is never
// mutated.
func Merge(old []*Stock, fresh []Stock) []*Stock {
	bySymbol := make(map[string]Stock, len(fresh))
	for _, s := range fresh {
		if _, ok := bySymbol[s.Symbol]; !ok {
			bySymbol[s.Symbol] = s
		}
	}

	out := make([]*Stock, 0, len(old)+len(fresh))
	known := make(map[string]struct{}, len(old))
	for _, prev := range old {
		known[prev.Symbol] = struct{}{}
		next, ok := bySymbol[prev.Symbol]
		if !ok || prev.SameQuote(next) {
			out = append(out, prev)
			continue
		}
		updated := *prev
		updated.Price = next.Price
		updated.Change = next.Change
		updated.ChangePercent = next.ChangePercent
		out = append(out, &updated)
	}

	for _, s := range fresh {
		if _, ok := known[s.Symbol]; ok {
			continue
		}
		known[s.Symbol] = struct{}{}
		added := s
		out = append(out, &added)
	}
	return out
}
