// Package trade holds the in-flight negotiation between two seats and the
// bank quote rules. It validates offers but never moves resources itself;
// the session settles an accepted offer through the ledger.
package trade

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hexlog/catan-server-go/internal/game/gameerr"
	"github.com/hexlog/catan-server-go/internal/game/resource"
)

// Offer is one round of a negotiation: From gives Give to To and receives
// Want in return.
type Offer struct {
	ID    uuid.UUID
	From  int
	To    int
	Give  resource.Bundle
	Want  resource.Bundle
	Round int
}

func (o Offer) String() string {
	return fmt.Sprintf("seat %d offers %s to seat %d for %s", o.From, o.Give, o.To, o.Want)
}

// Negotiation holds at most one pending offer.
type Negotiation struct {
	pending *Offer
	newID   func() uuid.UUID
}

// NewNegotiation creates an idle negotiation. A nil idFunc uses uuid.New.
func NewNegotiation(idFunc func() uuid.UUID) *Negotiation {
	if idFunc == nil {
		idFunc = uuid.New
	}
	return &Negotiation{newID: idFunc}
}

// Pending returns the open offer, if any.
func (n *Negotiation) Pending() (Offer, bool) {
	if n.pending == nil {
		return Offer{}, false
	}
	return *n.pending, true
}

// Restore replaces the pending offer. Used by history and snapshots.
func (n *Negotiation) Restore(offer *Offer) {
	if offer == nil {
		n.pending = nil
		return
	}
	copied := *offer
	n.pending = &copied
}

func validateTerms(give, want resource.Bundle) error {
	if !give.NonNegative() || !want.NonNegative() {
		return gameerr.Invalid("trade terms cannot be negative")
	}
	if give.IsZero() || want.IsZero() {
		return gameerr.Invalid("both sides of a trade must give something")
	}
	if !give.Disjoint(want) {
		return gameerr.Invalid("cannot trade %s for %s", give, want)
	}
	return nil
}

// Propose opens a negotiation from one seat to another.
func (n *Negotiation) Propose(from, to int, give, want resource.Bundle) (Offer, error) {
	if n.pending != nil {
		return Offer{}, gameerr.New(gameerr.CodeNegotiationInProgress,
			"offer %s is still pending", n.pending.ID)
	}
	if from == to {
		return Offer{}, gameerr.Invalid("seat %d cannot trade with itself", from)
	}
	if err := validateTerms(give, want); err != nil {
		return Offer{}, err
	}
	offer := Offer{ID: n.newID(), From: from, To: to, Give: give, Want: want, Round: 1}
	n.pending = &offer
	return offer, nil
}

// Counter replaces the pending offer with the responder's terms. The roles
// swap: the counter-offer now waits on the original proposer.
func (n *Negotiation) Counter(by int, give, want resource.Bundle) (Offer, error) {
	current, err := n.responder(by)
	if err != nil {
		return Offer{}, err
	}
	if err := validateTerms(give, want); err != nil {
		return Offer{}, err
	}
	offer := Offer{
		ID:    current.ID,
		From:  by,
		To:    current.From,
		Give:  give,
		Want:  want,
		Round: current.Round + 1,
	}
	n.pending = &offer
	return offer, nil
}

// Accept closes the negotiation and returns the agreed offer for settlement.
func (n *Negotiation) Accept(by int) (Offer, error) {
	current, err := n.responder(by)
	if err != nil {
		return Offer{}, err
	}
	n.pending = nil
	return current, nil
}

// Reject discards the pending offer. Either party may reject; a rejection by
// the proposer withdraws it.
func (n *Negotiation) Reject(by int) (Offer, error) {
	if n.pending == nil {
		return Offer{}, gameerr.Illegal("no trade is pending")
	}
	current := *n.pending
	if by != current.From && by != current.To {
		return Offer{}, gameerr.Illegal("seat %d is not part of offer %s", by, current.ID)
	}
	n.pending = nil
	return current, nil
}

func (n *Negotiation) responder(by int) (Offer, error) {
	if n.pending == nil {
		return Offer{}, gameerr.Illegal("no trade is pending")
	}
	if by != n.pending.To {
		return Offer{}, gameerr.Illegal("offer %s waits on seat %d, not seat %d",
			n.pending.ID, n.pending.To, by)
	}
	return *n.pending, nil
}

// QuoteBank checks a maritime trade: every given resource must come in whole
// multiples of its ratio, the multiples must add up to the number of
// resources wanted, and the bank must hold what is wanted.
func QuoteBank(give, want resource.Bundle, ratio func(resource.Type) int, bank resource.Bundle) error {
	if err := validateTerms(give, want); err != nil {
		return err
	}
	lots := 0
	for _, r := range resource.All() {
		n := give[r]
		if n == 0 {
			continue
		}
		k := ratio(r)
		if k <= 0 || n%k != 0 {
			return gameerr.Invalid("%d %s is not a multiple of the %d:1 rate", n, r, k)
		}
		lots += n / k
	}
	if lots != want.Total() {
		return gameerr.Invalid("%s buys %d resources, asked for %d", give, lots, want.Total())
	}
	if !bank.Covers(want) {
		return gameerr.New(gameerr.CodeInsufficientResource, "bank cannot supply %s", want)
	}
	return nil
}
