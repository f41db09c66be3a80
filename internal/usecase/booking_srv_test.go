package usecase

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/dto/request"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"

	"github.com/google/uuid"
)

func TestBookingLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)

	b := f.createBooking("80")
	if b.Status != entity.BookingStatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if !b.ExpiresAt.Equal(f.now.AddDate(0, 0, 7)) {
		t.Fatalf("expected default expiry in 7 days, got %s", b.ExpiresAt)
	}

	f.accept(b.UUID)
	txn := f.pay(b.UUID)
	if !txn.GrossAmount.Equal(d("92")) || !txn.CommissionAmount.Equal(d("12")) || !txn.CarrierAmount.Equal(d("80")) {
		t.Fatalf("unexpected amounts: gross %s commission %s carrier %s", txn.GrossAmount, txn.CommissionAmount, txn.CarrierAmount)
	}
	if got := f.status(b.UUID); got != entity.BookingStatusPaid {
		t.Fatalf("expected paid, got %s", got)
	}

	escrow, err := f.svc.Escrow.GetByTransaction(f.ctx, f.admin, txn.ID)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if !escrow.AmountHeld.Equal(d("80")) || escrow.Status != entity.EscrowStatusHolding {
		t.Fatalf("expected 80 holding, got %s %s", escrow.AmountHeld, escrow.Status)
	}

	f.deliver(b.UUID)
	f.activateCarrier()

	done, err := f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != entity.BookingStatusCompleted || done.FinalPrice == nil || !done.FinalPrice.Equal(d("80")) {
		t.Fatalf("unexpected completed booking: %+v", done)
	}

	escrow, _ = f.svc.Escrow.GetByTransaction(f.ctx, f.admin, txn.ID)
	if escrow.Status != entity.EscrowStatusFullyReleased || !escrow.Remaining.IsZero() {
		t.Fatalf("expected fully released escrow, got %s remaining %s", escrow.Status, escrow.Remaining)
	}
	if f.gateway.TransferCount() != 1 {
		t.Fatalf("expected one payout transfer, got %d", f.gateway.TransferCount())
	}

	history, err := f.svc.Booking.GetBookingHistory(f.ctx, f.sender, b.UUID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantPath := []entity.BookingStatus{
		entity.BookingStatusPending,
		entity.BookingStatusAccepted,
		entity.BookingStatusPaymentPending,
		entity.BookingStatusPaid,
		entity.BookingStatusInTransit,
		entity.BookingStatusDelivered,
		entity.BookingStatusCompleted,
	}
	if len(history) != len(wantPath) {
		t.Fatalf("expected %d audit entries, got %d", len(wantPath), len(history))
	}
	for i, entry := range history {
		if entry.Seq != int64(i+1) || entry.ToStatus != wantPath[i] {
			t.Fatalf("entry %d: got seq %d to %s", i, entry.Seq, entry.ToStatus)
		}
	}

	sent, err := f.svc.Events.Relay(f.ctx)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	wantEvents := []string{
		eventbus.TypeBookingCreated,
		eventbus.TypeBookingAccepted,
		eventbus.TypePaymentRequired,
		eventbus.TypePaymentConfirmed,
		eventbus.TypeBookingInTransit,
		eventbus.TypeBookingDelivered,
		eventbus.TypeBookingCompleted,
		eventbus.TypeFundsReleased,
	}
	if sent != len(wantEvents) {
		t.Fatalf("expected %d events, got %d: %v", len(wantEvents), sent, f.publisher.Types())
	}
	for i, typ := range f.publisher.Types() {
		if typ != wantEvents[i] {
			t.Fatalf("event %d: got %s, want %s", i, typ, wantEvents[i])
		}
	}

	var created eventbus.Event
	if err := json.Unmarshal(f.publisher.Messages()[0].Payload, &created); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if created.ActorID != f.sender.ID || created.CounterpartID != f.carrier.ID {
		t.Fatalf("unexpected parties on created event: %+v", created)
	}
	if !strings.Contains(created.Route, "Lisbon") {
		t.Fatalf("expected route on event, got %q", created.Route)
	}
	if f.publisher.Messages()[0].Key != b.UUID {
		t.Fatalf("expected events keyed by booking uuid, got %s", f.publisher.Messages()[0].Key)
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)

	valid := func() *request.CreateBookingRequest {
		return &request.CreateBookingRequest{
			TripID:             f.trip.ID.String(),
			CarrierID:          f.carrier.ID.String(),
			PackageDescription: "Shoes",
			Weight:             d("2"),
			ProposedPrice:      d("50"),
			PickupAddress:      "A",
			DeliveryAddress:    "B",
		}
	}
	past := f.now.Add(-time.Hour)

	tests := []struct {
		name   string
		actor  Actor
		mutate func(r *request.CreateBookingRequest)
	}{
		{"sender is carrier", f.carrier, func(r *request.CreateBookingRequest) {}},
		{"zero weight", f.sender, func(r *request.CreateBookingRequest) { r.Weight = d("0") }},
		{"zero price", f.sender, func(r *request.CreateBookingRequest) { r.ProposedPrice = d("0") }},
		{"expiry in the past", f.sender, func(r *request.CreateBookingRequest) { r.ExpiresAt = &past }},
		{"unknown trip", f.sender, func(r *request.CreateBookingRequest) { r.TripID = uuid.NewString() }},
		{"carrier not on trip", f.sender, func(r *request.CreateBookingRequest) { r.CarrierID = uuid.NewString() }},
		{"too heavy for trip", f.sender, func(r *request.CreateBookingRequest) { r.Weight = d("25") }},
		{"missing description", f.sender, func(r *request.CreateBookingRequest) { r.PackageDescription = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := f.svc.Booking.CreateBooking(f.ctx, tt.actor, req)
			expectCode(t, err, apperror.CodeInvalidInput)
		})
	}
}

func TestAcceptBooking_ConcurrentAcceptsOnlyOneWins(t *testing.T) {
	testConcurrentAccepts(t, newFixture(t))
}

func testConcurrentAccepts(t *testing.T, f *fixture) {
	b := f.createBooking("80")

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Booking.AcceptBooking(f.ctx, f.carrier, b.UUID, &request.AcceptBookingRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperror.CodeOf(err) == apperror.CodeAlreadyAccepted:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || rejected != callers-1 {
		t.Fatalf("expected 1 win and %d AlreadyAccepted, got %d and %d", callers-1, wins, rejected)
	}

	detail, err := f.svc.Booking.GetBooking(f.ctx, f.sender, b.UUID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	accepted := 0
	for _, n := range detail.Negotiations {
		if n.IsAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted negotiation, got %d", accepted)
	}
}

func TestNegotiation_CounterpartAccepts(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking("80")

	msg := "can you do 95?"
	if _, err := f.svc.Booking.ProposeNegotiation(f.ctx, f.carrier, b.UUID, &request.ProposeNegotiationRequest{Amount: d("95"), Message: &msg}); err != nil {
		t.Fatalf("carrier offer: %v", err)
	}
	offer, err := f.svc.Booking.ProposeNegotiation(f.ctx, f.sender, b.UUID, &request.ProposeNegotiationRequest{Amount: d("90")})
	if err != nil {
		t.Fatalf("sender counter offer: %v", err)
	}

	outsider := Actor{ID: uuid.New(), Role: "user"}
	_, err = f.svc.Booking.ProposeNegotiation(f.ctx, outsider, b.UUID, &request.ProposeNegotiationRequest{Amount: d("70")})
	expectCode(t, err, apperror.CodeForbidden)

	_, err = f.svc.Booking.AcceptNegotiation(f.ctx, f.sender, b.UUID, offer.ID)
	expectCode(t, err, apperror.CodeForbidden)

	accepted, err := f.svc.Booking.AcceptNegotiation(f.ctx, f.carrier, b.UUID, offer.ID)
	if err != nil {
		t.Fatalf("carrier accepts: %v", err)
	}
	if accepted.Status != entity.BookingStatusAccepted || !accepted.FinalPrice.Equal(d("90")) {
		t.Fatalf("expected accepted at 90, got %s %v", accepted.Status, accepted.FinalPrice)
	}

	_, err = f.svc.Booking.ProposeNegotiation(f.ctx, f.carrier, b.UUID, &request.ProposeNegotiationRequest{Amount: d("100")})
	expectCode(t, err, apperror.CodeInvalidState)

	_, err = f.svc.Booking.AcceptBooking(f.ctx, f.carrier, b.UUID, nil)
	expectCode(t, err, apperror.CodeAlreadyAccepted)
}

func TestAcceptBooking_FinalPriceOverride(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking("80")

	override := d("85.555")
	_, err := f.svc.Booking.AcceptBooking(f.ctx, f.sender, b.UUID, &request.AcceptBookingRequest{FinalPrice: &override})
	expectCode(t, err, apperror.CodeForbidden)

	accepted, err := f.svc.Booking.AcceptBooking(f.ctx, f.carrier, b.UUID, &request.AcceptBookingRequest{FinalPrice: &override})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !accepted.FinalPrice.Equal(d("85.56")) {
		t.Fatalf("expected final price rounded to 85.56, got %s", accepted.FinalPrice)
	}
}

func TestRejectBooking(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking("80")

	_, err := f.svc.Booking.RejectBooking(f.ctx, f.sender, b.UUID, nil)
	expectCode(t, err, apperror.CodeForbidden)

	reason := "no room left"
	rejected, err := f.svc.Booking.RejectBooking(f.ctx, f.carrier, b.UUID, &request.RejectBookingRequest{Reason: &reason})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != entity.BookingStatusRejected || *rejected.CancellationReason != reason {
		t.Fatalf("unexpected rejected booking: %s %v", rejected.Status, rejected.CancellationReason)
	}

	_, err = f.svc.Booking.AcceptBooking(f.ctx, f.carrier, b.UUID, nil)
	expectCode(t, err, apperror.CodeInvalidState)
}

func TestExpireStalePendingBookings(t *testing.T) {
	f := newFixture(t)
	stale1 := f.createBooking("80")
	stale2 := f.createBooking("60")
	taken := f.createBooking("70")
	f.accept(taken.UUID)

	f.now = f.now.AddDate(0, 0, 8)
	fresh := f.createBooking("50")

	_, err := f.svc.Booking.AcceptBooking(f.ctx, f.carrier, stale1.UUID, nil)
	expectCode(t, err, apperror.CodeInvalidState)

	expired, err := f.svc.Booking.ExpireStalePendingBookings(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expected 2 expired bookings, got %d", expired)
	}

	again, err := f.svc.Booking.ExpireStalePendingBookings(f.ctx)
	if err != nil || again != 0 {
		t.Fatalf("second sweep should be a no-op, got %d %v", again, err)
	}

	for _, ref := range []string{stale1.UUID, stale2.UUID} {
		got, err := f.svc.Booking.GetBooking(f.ctx, f.sender, ref)
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		if got.Status != entity.BookingStatusCancelled || got.CancellationReason == nil || *got.CancellationReason != "expired" {
			t.Fatalf("expected cancelled with reason expired, got %s %v", got.Status, got.CancellationReason)
		}
	}
	if got := f.status(taken.UUID); got != entity.BookingStatusAccepted {
		t.Fatalf("accepted booking must not expire, got %s", got)
	}
	if got := f.status(fresh.UUID); got != entity.BookingStatusPending {
		t.Fatalf("fresh booking must stay pending, got %s", got)
	}

	history, _ := f.svc.Booking.GetBookingHistory(f.ctx, f.admin, stale1.UUID)
	last := history[len(history)-1]
	if last.ActorRole != "system" || last.Reason != "expired" {
		t.Fatalf("expected system expiry audit entry, got %+v", last)
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)

	pending := f.createBooking("80")
	cancelled, err := f.svc.Booking.CancelBooking(f.ctx, f.sender, pending.UUID, &request.CancelBookingRequest{Reason: "changed plans"})
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if cancelled.Status != entity.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	_, err = f.svc.Booking.CancelBooking(f.ctx, f.sender, pending.UUID, &request.CancelBookingRequest{Reason: "again"})
	expectCode(t, err, apperror.CodeInvalidState)

	// payment_pending voids the open intent
	awaiting := f.createBooking("80")
	f.accept(awaiting.UUID)
	if _, err := f.svc.Payment.InitiatePayment(f.ctx, f.sender, awaiting.UUID); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.svc.Booking.CancelBooking(f.ctx, f.carrier, awaiting.UUID, &request.CancelBookingRequest{Reason: "sick"}); err != nil {
		t.Fatalf("cancel payment_pending: %v", err)
	}
	detail, _ := f.svc.Booking.GetBooking(f.ctx, f.sender, awaiting.UUID)
	if detail.Status != entity.BookingStatusCancelled || detail.Payment == nil || detail.Payment.Status != entity.TransactionStatusCancelled {
		t.Fatalf("expected cancelled booking with voided payment, got %s %+v", detail.Status, detail.Payment)
	}
	if detail.FinalPrice != nil {
		t.Fatalf("cancellation after acceptance clears the final price")
	}

	// once paid, only the refund path can cancel
	paid, _ := f.paidBooking("80")
	_, err = f.svc.Booking.CancelBooking(f.ctx, f.sender, paid.UUID, &request.CancelBookingRequest{Reason: "too late"})
	expectCode(t, err, apperror.CodeInvalidState)
	if got := f.status(paid.UUID); got != entity.BookingStatusPaid {
		t.Fatalf("expected booking to stay paid, got %s", got)
	}
}

func TestCompleteBooking_Guards(t *testing.T) {
	f := newFixture(t)
	b, _ := f.paidBooking("80")

	_, err := f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID)
	expectCode(t, err, apperror.CodeInvalidState)

	_, err = f.svc.Booking.MarkDelivered(f.ctx, f.carrier, b.UUID)
	expectCode(t, err, apperror.CodeInvalidState)

	_, err = f.svc.Booking.MarkInTransit(f.ctx, f.sender, b.UUID)
	expectCode(t, err, apperror.CodeForbidden)

	f.deliver(b.UUID)

	_, err = f.svc.Booking.CompleteBooking(f.ctx, f.carrier, b.UUID)
	expectCode(t, err, apperror.CodeForbidden)

	// carrier has not finished onboarding
	_, err = f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID)
	expectCode(t, err, apperror.CodeInvalidState)
	if got := f.status(b.UUID); got != entity.BookingStatusDelivered {
		t.Fatalf("failed completion must not change state, got %s", got)
	}
	if f.gateway.TransferCount() != 0 {
		t.Fatalf("no transfer expected")
	}
}

func TestDispute_AdminCompletesAndRestoresPrice(t *testing.T) {
	f := newFixture(t)
	b, txn := f.paidBooking("80")

	disputed, err := f.svc.Booking.OpenDispute(f.ctx, f.sender, b.UUID, &request.DisputeBookingRequest{Reason: "parcel damaged"})
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if disputed.Status != entity.BookingStatusDisputed || disputed.FinalPrice != nil {
		t.Fatalf("expected disputed without final price, got %s %v", disputed.Status, disputed.FinalPrice)
	}

	f.activateCarrier()

	_, err = f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID)
	expectCode(t, err, apperror.CodeForbidden)

	done, err := f.svc.Booking.CompleteBooking(f.ctx, f.admin, b.UUID)
	if err != nil {
		t.Fatalf("admin complete: %v", err)
	}
	if done.Status != entity.BookingStatusCompleted || done.FinalPrice == nil || !done.FinalPrice.Equal(d("80")) {
		t.Fatalf("expected completed at 80, got %s %v", done.Status, done.FinalPrice)
	}

	escrow, _ := f.svc.Escrow.GetByTransaction(f.ctx, f.admin, txn.ID)
	if escrow.Status != entity.EscrowStatusFullyReleased {
		t.Fatalf("expected released escrow, got %s", escrow.Status)
	}
}

func TestDispute_Settlement(t *testing.T) {
	origins := []struct {
		name     string
		captured bool
		// open returns a disputed booking and the transaction behind it
		open func(f *fixture) (string, int64)
	}{
		{
			name: "payment_pending without capture",
			open: func(f *fixture) (string, int64) {
				b := f.createBooking("80")
				f.accept(b.UUID)
				txn, err := f.svc.Payment.InitiatePayment(f.ctx, f.sender, b.UUID)
				if err != nil {
					f.t.Fatalf("initiate: %v", err)
				}
				f.dispute(b.UUID)
				return b.UUID, txn.ID
			},
		},
		{
			name:     "payment_pending captured after dispute",
			captured: true,
			open: func(f *fixture) (string, int64) {
				b := f.createBooking("80")
				f.accept(b.UUID)
				txn, err := f.svc.Payment.InitiatePayment(f.ctx, f.sender, b.UUID)
				if err != nil {
					f.t.Fatalf("initiate: %v", err)
				}
				f.dispute(b.UUID)
				if _, err := f.gateway.ConfirmPaymentIntent(f.ctx, txn.PaymentIntentID, "pm_card_visa"); err != nil {
					f.t.Fatalf("processor confirm: %v", err)
				}
				payload, sig := f.webhook(payment.WebhookEvent{ID: "evt_" + txn.PaymentIntentID, Type: payment.EventPaymentSucceeded, PaymentIntentID: txn.PaymentIntentID})
				if _, err := f.svc.Payment.HandleWebhook(f.ctx, payload, sig); err != nil {
					f.t.Fatalf("webhook: %v", err)
				}
				return b.UUID, txn.ID
			},
		},
		{
			name:     "paid",
			captured: true,
			open: func(f *fixture) (string, int64) {
				b, txn := f.paidBooking("80")
				f.dispute(b.UUID)
				return b.UUID, txn.ID
			},
		},
		{
			name:     "delivered",
			captured: true,
			open: func(f *fixture) (string, int64) {
				b, txn := f.paidBooking("80")
				f.deliver(b.UUID)
				f.dispute(b.UUID)
				return b.UUID, txn.ID
			},
		},
	}

	for _, origin := range origins {
		t.Run(origin.name+"/admin cancel", func(t *testing.T) {
			f := newFixture(t)
			ref, txnID := origin.open(f)

			if _, err := f.svc.Booking.CancelBooking(f.ctx, f.admin, ref, &request.CancelBookingRequest{Reason: "dispute upheld"}); err != nil {
				t.Fatalf("admin cancel: %v", err)
			}
			detail, _ := f.svc.Booking.GetBooking(f.ctx, f.admin, ref)
			if detail.Status != entity.BookingStatusCancelled {
				t.Fatalf("expected cancelled, got %s", detail.Status)
			}
			if !origin.captured {
				if detail.Payment.Status != entity.TransactionStatusCancelled {
					t.Fatalf("expected voided payment, got %s", detail.Payment.Status)
				}
				return
			}
			if detail.Payment.Status != entity.TransactionStatusRefunded {
				t.Fatalf("expected refunded payment, got %s", detail.Payment.Status)
			}
			f.expectEscrow(txnID, entity.EscrowStatusRefunded)
		})

		t.Run(origin.name+"/admin refund", func(t *testing.T) {
			f := newFixture(t)
			ref, txnID := origin.open(f)

			_, err := f.svc.Booking.RefundBooking(f.ctx, f.admin, ref, &request.RefundRequest{Reason: "goodwill"})
			if !origin.captured {
				expectCode(t, err, apperror.CodeInvalidState)
				if got := f.status(ref); got != entity.BookingStatusDisputed {
					t.Fatalf("refused refund must not change state, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("admin refund: %v", err)
			}
			if got := f.status(ref); got != entity.BookingStatusCancelled {
				t.Fatalf("expected cancelled, got %s", got)
			}
			f.expectEscrow(txnID, entity.EscrowStatusRefunded)
		})

		t.Run(origin.name+"/admin complete", func(t *testing.T) {
			f := newFixture(t)
			ref, txnID := origin.open(f)
			f.activateCarrier()

			_, err := f.svc.Booking.CompleteBooking(f.ctx, f.admin, ref)
			if !origin.captured {
				expectCode(t, err, apperror.CodeInvalidState)
				if got := f.status(ref); got != entity.BookingStatusDisputed {
					t.Fatalf("refused completion must not change state, got %s", got)
				}
				if f.gateway.TransferCount() != 0 {
					t.Fatalf("no transfer expected")
				}
				return
			}
			if err != nil {
				t.Fatalf("admin complete: %v", err)
			}
			if got := f.status(ref); got != entity.BookingStatusCompleted {
				t.Fatalf("expected completed, got %s", got)
			}
			f.expectEscrow(txnID, entity.EscrowStatusFullyReleased)
		})
	}
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.createBooking("40")
		f.now = f.now.Add(time.Minute)
	}

	page, err := f.svc.Booking.ListUserBookings(f.ctx, f.carrier, &request.PaginatedRequest{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("list user bookings: %v", err)
	}
	if page.Pagination.Total != 3 || len(page.Data) != 2 || page.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected page: total %d len %d pages %d", page.Pagination.Total, len(page.Data), page.Pagination.TotalPages)
	}
	if !page.Data[0].CreatedAt.After(page.Data[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	trip, err := f.svc.Booking.ListTripBookings(f.ctx, f.carrier, f.trip.ID.String(), &request.PaginatedRequest{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list trip bookings: %v", err)
	}
	if len(trip.Data) != 1 {
		t.Fatalf("expected one booking on page 2, got %d", len(trip.Data))
	}

	_, err = f.svc.Booking.ListTripBookings(f.ctx, f.sender, f.trip.ID.String(), &request.PaginatedRequest{Page: 1, PerPage: 10})
	expectCode(t, err, apperror.CodeForbidden)

	outsider := Actor{ID: uuid.New(), Role: "user"}
	_, err = f.svc.Booking.GetBooking(f.ctx, outsider, page.Data[0].UUID)
	expectCode(t, err, apperror.CodeForbidden)
}
