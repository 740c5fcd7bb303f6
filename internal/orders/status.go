package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// refunded and cancelled are only ever set by an admin.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusFailed: true, StatusExpired: true, StatusCancelled: true},
	StatusPaid:      {StatusRefunded: true, StatusCancelled: true},
	StatusFailed:    {StatusCancelled: true},
	StatusExpired:   {StatusCancelled: true},
	StatusRefunded:  {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// AllowedFrom lists every status that may move to `to`.
func AllowedFrom(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusPaid, StatusFailed, StatusExpired, StatusRefunded, StatusCancelled} {
		if validNext[from][to] {
			out = append(out, from)
		}
	}
	return out
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s != StatusPending
}

func (s Status) IsAdminOnly() bool {
	return s == StatusRefunded || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}
