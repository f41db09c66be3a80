package usecase

import (
	"sync"
	"testing"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/dto/request"
	"courier-booking/pkg/apperror"
	"courier-booking/pkg/eventbus"
)

func TestEscrowRelease_ConcurrentReleasesNeverExceedHold(t *testing.T) {
	testConcurrentReleases(t, newFixture(t))
}

func testConcurrentReleases(t *testing.T, f *fixture) {
	b, txn := f.paidBooking("80")

	_, err := f.svc.Escrow.Release(f.ctx, f.admin, txn.ID, &request.ReleaseEscrowRequest{Amount: d("10")})
	expectCode(t, err, apperror.CodeInvalidState)

	f.deliver(b.UUID)
	f.activateCarrier()

	_, err = f.svc.Escrow.Release(f.ctx, f.sender, txn.ID, &request.ReleaseEscrowRequest{Amount: d("10")})
	expectCode(t, err, apperror.CodeForbidden)

	const callers = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		over int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Escrow.Release(f.ctx, f.admin, txn.ID, &request.ReleaseEscrowRequest{Amount: d("50")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperror.CodeOf(err) == apperror.CodeOverRelease:
				over++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || over != callers-1 {
		t.Fatalf("expected 1 release and %d OverRelease, got %d and %d", callers-1, wins, over)
	}

	escrow, err := f.svc.Escrow.Release(f.ctx, f.admin, txn.ID, &request.ReleaseEscrowRequest{Amount: d("30")})
	if err != nil {
		t.Fatalf("release rest: %v", err)
	}
	if escrow.Status != entity.EscrowStatusFullyReleased || !escrow.AmountReleased.Equal(d("80")) {
		t.Fatalf("expected fully released 80, got %s %s", escrow.Status, escrow.AmountReleased)
	}

	_, err = f.svc.Escrow.Release(f.ctx, f.admin, txn.ID, &request.ReleaseEscrowRequest{Amount: d("0.01")})
	expectCode(t, err, apperror.CodeOverRelease)

	if f.gateway.TransferCount() != 2 {
		t.Fatalf("expected 2 transfers, got %d", f.gateway.TransferCount())
	}

	// completion after a full manual release moves no more money
	if _, err := f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if f.gateway.TransferCount() != 2 {
		t.Fatalf("expected no extra transfer, got %d", f.gateway.TransferCount())
	}
}

func TestEscrowRelease_UnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Escrow.Release(f.ctx, f.admin, 999, &request.ReleaseEscrowRequest{Amount: d("1")})
	expectCode(t, err, apperror.CodeNotFound)

	_, err = f.svc.Escrow.GetByTransaction(f.ctx, f.admin, 999)
	expectCode(t, err, apperror.CodeNotFound)
}

func TestRefund_RefusedAfterRelease(t *testing.T) {
	f := newFixture(t)
	b, txn := f.paidBooking("80")
	f.activateCarrier()

	if _, err := f.svc.Booking.OpenDispute(f.ctx, f.carrier, b.UUID, &request.DisputeBookingRequest{Reason: "sender unreachable"}); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if _, err := f.svc.Escrow.Release(f.ctx, f.admin, txn.ID, &request.ReleaseEscrowRequest{Amount: d("10")}); err != nil {
		t.Fatalf("partial release: %v", err)
	}

	_, err := f.svc.Booking.RefundBooking(f.ctx, f.admin, b.UUID, &request.RefundRequest{Reason: "goodwill"})
	expectCode(t, err, apperror.CodeInvalidState)

	if got := f.status(b.UUID); got != entity.BookingStatusDisputed {
		t.Fatalf("refused refund must not change state, got %s", got)
	}
	escrow, _ := f.svc.Escrow.GetByTransaction(f.ctx, f.admin, txn.ID)
	if escrow.Status != entity.EscrowStatusPartialRelease || !escrow.Remaining.Equal(d("70")) {
		t.Fatalf("expected partial release with 70 left, got %s %s", escrow.Status, escrow.Remaining)
	}
}

func TestRefund_CancelsPaidBooking(t *testing.T) {
	f := newFixture(t)
	b, txn := f.paidBooking("80")

	_, err := f.svc.Escrow.Refund(f.ctx, f.sender, txn.ID, &request.RefundRequest{Reason: "mine"})
	expectCode(t, err, apperror.CodeForbidden)

	escrow, err := f.svc.Escrow.Refund(f.ctx, f.admin, txn.ID, &request.RefundRequest{Reason: "parcel lost before pickup"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if escrow.Status != entity.EscrowStatusRefunded {
		t.Fatalf("expected refunded escrow, got %s", escrow.Status)
	}

	detail, _ := f.svc.Booking.GetBooking(f.ctx, f.sender, b.UUID)
	if detail.Status != entity.BookingStatusCancelled || detail.Payment.Status != entity.TransactionStatusRefunded {
		t.Fatalf("expected cancelled and refunded, got %s / %s", detail.Status, detail.Payment.Status)
	}
	if !detail.Payment.RefundedAmount.Equal(d("92")) {
		t.Fatalf("expected full refund of 92, got %s", detail.Payment.RefundedAmount)
	}

	_, err = f.svc.Escrow.Refund(f.ctx, f.admin, txn.ID, &request.RefundRequest{Reason: "again"})
	expectCode(t, err, apperror.CodeInvalidState)

	if _, err := f.svc.Events.Relay(f.ctx); err != nil {
		t.Fatalf("relay: %v", err)
	}
	types := f.publisher.Types()
	tail := types[len(types)-2:]
	if tail[0] != eventbus.TypeBookingCancelled || tail[1] != eventbus.TypePaymentRefunded {
		t.Fatalf("expected cancellation and refund events last, got %v", tail)
	}
}

func TestRefundBooking_PartialAmount(t *testing.T) {
	f := newFixture(t)
	b, _ := f.paidBooking("80")

	_, err := f.svc.Booking.RefundBooking(f.ctx, f.sender, b.UUID, &request.RefundRequest{Reason: "x"})
	expectCode(t, err, apperror.CodeForbidden)

	amount := d("40")
	if _, err := f.svc.Booking.RefundBooking(f.ctx, f.admin, b.UUID, &request.RefundRequest{Amount: &amount, Reason: "half"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	detail, _ := f.svc.Booking.GetBooking(f.ctx, f.admin, b.UUID)
	if !detail.Payment.RefundedAmount.Equal(d("40")) || detail.Status != entity.BookingStatusCancelled {
		t.Fatalf("expected 40 refunded and cancelled, got %s %s", detail.Payment.RefundedAmount, detail.Status)
	}
}
