package payments

import "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"

// classify maps a provider's status vocabulary onto the internal lifecycle.
// Anything missing from the table is EventOther and gets ignored.
func classify(table map[string]orders.Status, raw, orderID, ref string) VerifiedEvent {
	ev := VerifiedEvent{OrderID: orderID, ProviderReference: ref, RawStatus: raw}
	switch st, ok := table[raw]; {
	case !ok:
		ev.Kind = EventOther
	case st == orders.StatusPaid:
		ev.Kind, ev.Status = EventSuccess, st
	default:
		ev.Kind, ev.Status = EventFailure, st
	}
	return ev
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
