package usecase

import (
	"testing"

	"courier-booking/internal/data/entity"
	"courier-booking/internal/dto/request"
	"courier-booking/pkg/apperror"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		history    entity.RequesterHistory
		rate       string
		commission string
		total      string
	}{
		{"new sender small parcel", "80", entity.RequesterHistory{}, "15", "12", "92"},
		{"mid tier", "100", entity.RequesterHistory{}, "12.5", "12.5", "112.5"},
		{"top tier", "500", entity.RequesterHistory{}, "10", "50", "550"},
		{"count discount only", "80", entity.RequesterHistory{CompletedBookings: 12, CompletedVolume: d("300")}, "14", "11.2", "91.2"},
		{"discounts capped at five points", "200", entity.RequesterHistory{CompletedBookings: 55, CompletedVolume: d("6000")}, "7.5", "15", "215"},
		{"rate floored at five percent", "800", entity.RequesterHistory{CompletedBookings: 60, CompletedVolume: d("9000")}, "5", "40", "840"},
		{"rounds half up", "33.33", entity.RequesterHistory{}, "15", "5", "38.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.history.CompletedVolume.IsZero() {
				tt.history.CompletedVolume = decimal.Zero
			}
			q := ComputeFees(d(tt.base), tt.history)

			if !q.Rate.Equal(d(tt.rate)) {
				t.Errorf("rate: got %s, want %s", q.Rate, tt.rate)
			}
			if !q.CommissionAmount.Equal(d(tt.commission)) {
				t.Errorf("commission: got %s, want %s", q.CommissionAmount, tt.commission)
			}
			if !q.TotalAmount.Equal(d(tt.total)) {
				t.Errorf("total: got %s, want %s", q.TotalAmount, tt.total)
			}
			if !q.CarrierAmount.Equal(d(tt.base)) {
				t.Errorf("carrier amount: got %s, want %s", q.CarrierAmount, tt.base)
			}
			if !q.BaseAmount.Add(q.CommissionAmount).Equal(q.TotalAmount) {
				t.Errorf("base + commission != total: %s + %s != %s", q.BaseAmount, q.CommissionAmount, q.TotalAmount)
			}
		})
	}
}

func TestComputeFees_Breakdown(t *testing.T) {
	q := ComputeFees(d("200"), entity.RequesterHistory{CompletedBookings: 55, CompletedVolume: d("6000")})

	if !q.Breakdown.TierRate.Equal(d("12.5")) {
		t.Errorf("tier rate: got %s", q.Breakdown.TierRate)
	}
	if !q.Breakdown.CountDiscount.Equal(d("3")) || !q.Breakdown.VolumeDiscount.Equal(d("2.5")) {
		t.Errorf("discounts: got %s and %s", q.Breakdown.CountDiscount, q.Breakdown.VolumeDiscount)
	}
	if !q.Breakdown.TotalDiscount.Equal(d("5")) {
		t.Errorf("total discount: got %s", q.Breakdown.TotalDiscount)
	}
}

func TestCommissionService_ValidateCommission(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		claimed string
		want    bool
	}{
		{"12", true},
		{"12.01", true},
		{"11.99", true},
		{"12.02", false},
		{"15", false},
	}
	for _, tt := range tests {
		ok, err := f.svc.Commission.ValidateCommission(f.ctx, d("80"), d(tt.claimed), nil)
		if err != nil {
			t.Fatalf("validate %s: %v", tt.claimed, err)
		}
		if ok != tt.want {
			t.Errorf("claimed %s: got %v, want %v", tt.claimed, ok, tt.want)
		}
	}

	_, err := f.svc.Commission.ValidateCommission(f.ctx, d("0"), d("0"), nil)
	expectCode(t, err, apperror.CodeInvalidInput)
}

func TestCommissionService_UsesSenderHistory(t *testing.T) {
	f := newFixture(t)
	f.activateCarrier()

	// ten completed bookings of 100 each: one count point and one volume point
	for i := 0; i < 10; i++ {
		b, _ := f.paidBooking("100")
		f.deliver(b.UUID)
		if _, err := f.svc.Booking.CompleteBooking(f.ctx, f.sender, b.UUID); err != nil {
			t.Fatalf("complete booking %d: %v", i, err)
		}
	}

	quote, err := f.svc.Commission.CalculateFees(f.ctx, d("80"), &f.sender.ID)
	if err != nil {
		t.Fatalf("calculate fees: %v", err)
	}
	if quote.Breakdown.CompletedBookings != 10 {
		t.Fatalf("expected 10 completed bookings, got %d", quote.Breakdown.CompletedBookings)
	}
	if !quote.Rate.Equal(d("13")) {
		t.Fatalf("expected 13%% after loyalty discount, got %s", quote.Rate)
	}

	// the window is trailing twelve months
	f.now = f.now.AddDate(1, 1, 0)
	quote, err = f.svc.Commission.CalculateFees(f.ctx, d("80"), &f.sender.ID)
	if err != nil {
		t.Fatalf("calculate fees: %v", err)
	}
	if !quote.Rate.Equal(d("15")) {
		t.Fatalf("expected history to age out, got rate %s", quote.Rate)
	}

	preview, err := f.svc.Commission.PreviewFees(f.ctx, &request.FeePreviewRequest{Amount: d("80")})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !preview.TotalAmount.Equal(d("92")) {
		t.Fatalf("expected anonymous preview total 92, got %s", preview.TotalAmount)
	}
}
