package cartsync

import (
	"context"
	"log"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/events"
)

// MergeFailure is a guest line the backend refused during a merge. It stays
// in the guest cart.
type MergeFailure struct {
	Line  cart.LineItem `json:"line"`
	Error string        `json:"error"`
}

type MergeReport struct {
	Merged  []cart.MergeLine `json:"merged"`
	Dropped []cart.LineItem  `json:"dropped"`
	Failed  []MergeFailure   `json:"failed"`
}

// Empty reports whether there was nothing to merge.
func (r MergeReport) Empty() bool {
	return len(r.Merged) == 0 && len(r.Dropped) == 0 && len(r.Failed) == 0
}

// MergeGuestIntoUser folds the guest's cart into the user's server cart after
// login. Lines the backend accepts leave the guest cart; refused ones stay
// there and are reported, as are lines dropped for lack of stock.
func (s *Synchronizer) MergeGuestIntoUser(ctx context.Context, guestID string, userID int64) (MergeReport, View, error) {
	guestOwner := cart.GuestOwner(guestID)
	userOwner := cart.UserOwner(userID)
	var report MergeReport

	if guestID == "" || userID == 0 {
		return report, View{}, cart.ErrNoOwner
	}

	gst := s.state(guestOwner)
	if err := gst.acquire(ctx); err != nil {
		return report, View{}, err
	}
	defer gst.release()

	guestCart, err := s.guests.Load(ctx, guestID)
	if err != nil {
		return report, View{}, err
	}
	if guestCart.IsEmpty() {
		view, err := s.Get(ctx, userOwner)
		return report, view, err
	}

	var (
		remaining []cart.LineItem
		attempted bool
	)
	view, err := s.mutate(ctx, userOwner, "Merge", func(ctx context.Context, _ cart.Cart) (cart.Cart, error) {
		server, err := s.backend.GetCart(ctx, userID)
		if err != nil {
			return cart.Cart{}, err
		}

		plan := cart.Merge(guestCart, server)
		report.Dropped = plan.Dropped
		attempted = true

		for _, ml := range plan.Apply {
			line, _ := guestCart.Find(ml.ProductID)
			updated, err := s.backend.AddToCart(ctx, userID, ml.ProductID, ml.Delta)
			if err != nil {
				report.Failed = append(report.Failed, MergeFailure{Line: line, Error: err.Error()})
				remaining = append(remaining, line)
				continue
			}
			server = updated
			report.Merged = append(report.Merged, ml)
		}
		return server, nil
	})
	if !attempted {
		return report, view, err
	}

	// Lines already added server-side must leave the guest cart even if the
	// caller has gone away, or a later merge would add them twice.
	left := cart.New(guestOwner, remaining...)
	if err := s.guests.Save(context.WithoutCancel(ctx), left); err != nil {
		log.Printf("[Cart] Failed to update guest cart %s after merge: %v", guestID, err)
	}

	s.mu.Lock()
	gst.cart = left
	gst.loaded = true
	gst.gen++
	s.mu.Unlock()
	s.publisher.Publish(events.CartChanged{OwnerKey: guestOwner.Key(), ItemCount: left.ItemCount(), OccurredAt: s.now()})

	log.Printf("[Cart] Merged guest cart %s into user %d: %d merged, %d dropped, %d failed",
		guestID, userID, len(report.Merged), len(report.Dropped), len(report.Failed))
	return report, view, err
}
