package client

import (
	"errors"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
)

var ErrUnknownLine = errors.New("product is not in the cart")

type LineState int

const (
	// LineApplied means the displayed quantity is what the backend holds.
	LineApplied LineState = iota
	LinePending
	LineFailed
)

func (s LineState) String() string {
	switch s {
	case LinePending:
		return "pending"
	case LineFailed:
		return "failed"
	default:
		return "applied"
	}
}

// Line is one cart row as the customer sees it.
type Line struct {
	Item domain.CartItem
	// Committed is the last quantity the backend acknowledged.
	Committed int
	State     LineState
	Err       error

	// edit counts local changes to the displayed quantity; acked is the
	// newest edit the backend has answered for.
	edit  uint64
	acked uint64
}

// Quantity is the displayed quantity.
func (l Line) Quantity() int {
	return l.Item.Quantity
}

// CartStore is the local copy of the cart. Totals always reflect the displayed quantities.
type CartStore struct {
	mu     sync.RWMutex
	userID string
	lines  []*Line
	policy pricing.Policy
}

func NewCartStore(policy pricing.Policy) *CartStore {
	return &CartStore{policy: policy}
}

// Replace loads a cart fetched from the backend. Lines whose edit is still
// waiting for the backend keep their displayed quantity; the rest start applied.
func (s *CartStore) Replace(cart *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make(map[int64]*Line, len(s.lines))
	for _, l := range s.lines {
		prev[l.Item.ProductID] = l
	}
	s.userID = cart.UserID
	s.lines = make([]*Line, 0, len(cart.Items))
	for _, it := range cart.Items {
		l := &Line{Item: it, Committed: it.Quantity}
		if old, ok := prev[it.ProductID]; ok {
			l.edit, l.acked = old.edit, old.acked
			if old.State == LinePending {
				l.Item.Quantity = old.Item.Quantity
				l.State = LinePending
			}
		}
		s.lines = append(s.lines, l)
	}
}

func (s *CartStore) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		out[i] = *l
	}
	return out
}

func (s *CartStore) Line(productID int64) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l := s.find(productID); l != nil {
		return *l, true
	}
	return Line{}, false
}

func (s *CartStore) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines) == 0
}

// LineItems snapshots the displayed lines for pricing and checkout.
func (s *CartStore) LineItems() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.LineItem, 0, len(s.lines))
	for _, l := range s.lines {
		items = append(items, l.Item.LineItem())
	}
	return items
}

func (s *CartStore) Totals() domain.Totals {
	return s.policy.Compute(s.LineItems())
}

// adjust moves the displayed quantity by delta, clamped to [1, 99], and marks the line pending.
// It returns the edit number of the resulting quantity and whether anything changed.
func (s *CartStore) adjust(productID int64, delta int) (qty int, edit uint64, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.find(productID)
	if l == nil {
		return 0, 0, false, ErrUnknownLine
	}
	next := l.Item.Quantity + delta
	if next < domain.MinItemQuantity {
		next = domain.MinItemQuantity
	}
	if next > domain.MaxItemQuantity {
		next = domain.MaxItemQuantity
	}
	if next != l.Item.Quantity {
		l.Item.Quantity = next
		l.State = LinePending
		l.Err = nil
		l.edit++
		changed = true
	}
	return next, l.edit, changed, nil
}

// applied records a backend acknowledgement of quantity for the given edit.
// Answers older than one already recorded are ignored. The line only leaves
// pending when the answer is for its latest edit.
func (s *CartStore) applied(productID int64, quantity int, edit uint64, snapshot *domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.find(productID)
	if l == nil || edit < l.acked {
		return
	}
	l.acked = edit
	l.Committed = quantity
	if snapshot != nil {
		l.Item.Name = snapshot.Name
		l.Item.UnitPrice = snapshot.UnitPrice
		l.Item.ImageURL = snapshot.ImageURL
	}
	if edit == l.edit {
		l.Item.Quantity = quantity
		l.State = LineApplied
		l.Err = nil
	}
}

// failed reverts the displayed quantity to the committed one when the failing
// write was for the latest edit. Otherwise a newer write decides the outcome.
func (s *CartStore) failed(productID int64, edit uint64, err error) (reverted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.find(productID)
	if l == nil || edit != l.edit {
		return false
	}
	l.Item.Quantity = l.Committed
	l.State = LineFailed
	l.Err = err
	return true
}

func (s *CartStore) find(productID int64) *Line {
	for _, l := range s.lines {
		if l.Item.ProductID == productID {
			return l
		}
	}
	return nil
}
