package usecase

import (
	"context"
	"fmt"
	"strings"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/data/repository"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
)

// party is the capacity in which an actor drives a transition.
type party uint8

const (
	partySender party = 1 << iota
	partyCarrier
	partyAdmin
	partySystem

	partyEither = partySender | partyCarrier
)

func (p party) String() string {
	var names []string
	for _, n := range []struct {
		bit  party
		name string
	}{{partySender, "sender"}, {partyCarrier, "carrier"}, {partyAdmin, "admin"}, {partySystem, "system"}} {
		if p&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// partiesOf lists every capacity the actor holds on the booking.
func partiesOf(actor Actor, b *entity.Booking) party {
	var p party
	switch actor.Role {
	case utils.RoleAdmin:
		p |= partyAdmin
	case utils.RoleSystem:
		p |= partySystem
	}
	if actor.ID == b.SenderID {
		p |= partySender
	}
	if actor.ID == b.CarrierID {
		p |= partyCarrier
	}
	return p
}

// money names the settlement work a transition must be accompanied by.
type money uint8

const (
	moneyNone money = 1 << iota
	moneyCollect
	moneyCapture
	moneyVoid
	moneyRelease
	moneyRefund
)

type priceRule uint8

const (
	priceKeep priceRule = iota
	priceSet
	priceClear
	priceRestore
)

type transitionRule struct {
	by     party
	money  money
	price  priceRule
	events []string
}

var disputeRule = transitionRule{
	by:     partyEither | partyAdmin,
	money:  moneyNone,
	price:  priceClear,
	events: []string{eventbus.TypeBookingDisputed},
}

// transitions is the complete set of permitted status changes.
var transitions = map[entity.BookingStatus]map[entity.BookingStatus]transitionRule{
	entity.BookingStatusPending: {
		entity.BookingStatusAccepted: {
			by: partyEither, money: moneyNone, price: priceSet,
			events: []string{eventbus.TypeBookingAccepted, eventbus.TypePaymentRequired},
		},
		entity.BookingStatusRejected: {
			by: partyCarrier, money: moneyNone, price: priceKeep,
			events: []string{eventbus.TypeBookingRejected},
		},
		entity.BookingStatusCancelled: {
			by: partyEither | partyAdmin | partySystem, money: moneyNone, price: priceKeep,
			events: []string{eventbus.TypeBookingCancelled},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusAccepted: {
		entity.BookingStatusPaymentPending: {
			by: partySender, money: moneyCollect, price: priceKeep,
		},
		entity.BookingStatusCancelled: {
			by: partyEither | partyAdmin, money: moneyNone, price: priceClear,
			events: []string{eventbus.TypeBookingCancelled},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusPaymentPending: {
		entity.BookingStatusPaid: {
			by: partySender | partyAdmin | partySystem, money: moneyCapture, price: priceKeep,
			events: []string{eventbus.TypePaymentConfirmed},
		},
		entity.BookingStatusCancelled: {
			by: partyEither | partyAdmin | partySystem, money: moneyVoid | moneyRefund, price: priceClear,
			events: []string{eventbus.TypeBookingCancelled},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusPaid: {
		entity.BookingStatusInTransit: {
			by: partyCarrier, money: moneyNone, price: priceKeep,
			events: []string{eventbus.TypeBookingInTransit},
		},
		entity.BookingStatusCancelled: {
			by: partyAdmin | partySystem, money: moneyRefund, price: priceClear,
			events: []string{eventbus.TypeBookingCancelled, eventbus.TypePaymentRefunded},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusInTransit: {
		entity.BookingStatusDelivered: {
			by: partyCarrier, money: moneyNone, price: priceKeep,
			events: []string{eventbus.TypeBookingDelivered},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusDelivered: {
		entity.BookingStatusCompleted: {
			by: partySender | partyAdmin, money: moneyRelease, price: priceKeep,
			events: []string{eventbus.TypeBookingCompleted, eventbus.TypeFundsReleased},
		},
		entity.BookingStatusDisputed: disputeRule,
	},
	entity.BookingStatusDisputed: {
		entity.BookingStatusCompleted: {
			by: partyAdmin, money: moneyRelease, price: priceRestore,
			events: []string{eventbus.TypeBookingCompleted, eventbus.TypeFundsReleased},
		},
		entity.BookingStatusCancelled: {
			by: partyAdmin | partySystem, money: moneyNone | moneyVoid | moneyRefund, price: priceKeep,
			events: []string{eventbus.TypeBookingCancelled},
		},
	},
}

// move describes one requested transition.
type move struct {
	to     entity.BookingStatus
	actor  Actor
	reason string
	money  money
	// amounts travel with the staged events; Amount is the agreed price
	// for priceSet and priceRestore rules.
	amounts *eventbus.Amounts
	// extra events staged alongside the rule's own, e.g. payment.refunded
	// when cancellation went through the refund path.
	extra []string
}

// lookupRule returns the rule for from → to or an InvalidState error.
func lookupRule(from, to entity.BookingStatus) (transitionRule, error) {
	rule, ok := transitions[from][to]
	if !ok {
		return transitionRule{}, apperror.InvalidState("cannot move booking from %s to %s", from, to)
	}
	return rule, nil
}

// apply validates m against the transition table, mutates and persists the
// locked booking, appends the audit entry and stages the events. It must run
// inside a transaction that holds the booking row.
func (e *engine) apply(ctx context.Context, tx *repository.Repository, b *entity.Booking, m move) error {
	from := b.Status
	rule, err := lookupRule(from, m.to)
	if err != nil {
		return err
	}

	if held := partiesOf(m.actor, b); held&rule.by == 0 {
		return apperror.Forbidden("only %s may move a booking from %s to %s", rule.by, from, m.to)
	}
	if rule.money&m.money == 0 {
		return apperror.InvalidState("moving a booking from %s to %s requires a different settlement path", from, m.to)
	}

	switch rule.price {
	case priceSet, priceRestore:
		if m.amounts == nil || !m.amounts.Amount.IsPositive() {
			return apperror.InvalidInput("an agreed price is required to move to %s", m.to)
		}
		price := utils.RoundMoney(m.amounts.Amount)
		b.FinalPrice = &price
	case priceClear:
		b.FinalPrice = nil
	}

	now := e.clock()
	b.Status = m.to
	b.UpdatedAt = now
	if m.to == entity.BookingStatusCancelled || m.to == entity.BookingStatusRejected {
		b.CancellationReason = strPtr(m.reason)
	}

	if err := tx.Booking.Update(ctx, b); err != nil {
		return mapConflict(err, apperror.CodeConflict, "booking %d was modified concurrently", b.ID)
	}

	entry := &entity.BookingAudit{
		BaseSimple: entity.BaseSimple{CreatedAt: now},
		BookingID:  b.ID,
		FromStatus: from,
		ToStatus:   m.to,
		ActorID:    m.actor.ID,
		ActorRole:  actorRole(m.actor, b),
		Reason:     m.reason,
	}
	if err := tx.Audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	events := append(append([]string{}, rule.events...), m.extra...)
	for _, eventType := range events {
		if err := e.stage(ctx, tx, b, eventType, m.actor, fmt.Sprintf("seq-%d", entry.Seq), m.amounts); err != nil {
			return err
		}
	}

	e.log.Info("Booking transitioned",
		zap.Int64("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(m.to)),
		zap.String("actor_id", m.actor.ID.String()),
		zap.String("reason", m.reason),
	)
	return nil
}

// actorRole names the actor for the audit trail.
func actorRole(actor Actor, b *entity.Booking) string {
	switch {
	case actor.Role == utils.RoleSystem:
		return utils.RoleSystem
	case actor.Role == utils.RoleAdmin:
		return utils.RoleAdmin
	case actor.ID == b.SenderID:
		return "sender"
	case actor.ID == b.CarrierID:
		return "carrier"
	}
	return actor.Role
}
