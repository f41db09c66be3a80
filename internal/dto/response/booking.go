package response

import (
	"time"

	"courier-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type BookingResponse struct {
	ID                  int64                `json:"id"`
	UUID                string               `json:"uuid"`
	TripID              string               `json:"trip_id"`
	SenderID            string               `json:"sender_id"`
	CarrierID           string               `json:"carrier_id"`
	PackageDescription  string               `json:"package_description"`
	Weight              decimal.Decimal      `json:"weight"`
	ProposedPrice       decimal.Decimal      `json:"proposed_price"`
	FinalPrice          *decimal.Decimal     `json:"final_price"`
	Currency            string               `json:"currency"`
	PickupAddress       string               `json:"pickup_address"`
	DeliveryAddress     string               `json:"delivery_address"`
	SpecialInstructions *string              `json:"special_instructions,omitempty"`
	PhotoURLs           []string             `json:"photo_urls"`
	Status              entity.BookingStatus `json:"status"`
	CancellationReason  *string              `json:"cancellation_reason,omitempty"`
	CancellationDetails *string              `json:"cancellation_details,omitempty"`
	ExpiresAt           time.Time            `json:"expires_at"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

type BookingDetailResponse struct {
	BookingResponse
	Negotiations []NegotiationResponse `json:"negotiations"`
	Payment      *TransactionResponse  `json:"payment,omitempty"`
}

type NegotiationResponse struct {
	ID         int64           `json:"id"`
	ProposerID string          `json:"proposer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Message    *string         `json:"message,omitempty"`
	IsAccepted bool            `json:"is_accepted"`
	CreatedAt  time.Time       `json:"created_at"`
}

type AuditEntryResponse struct {
	Seq        int64                `json:"seq"`
	FromStatus entity.BookingStatus `json:"from_status"`
	ToStatus   entity.BookingStatus `json:"to_status"`
	ActorID    string               `json:"actor_id"`
	ActorRole  string               `json:"actor_role"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

type ExpirySweepResponse struct {
	Expired int `json:"expired"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	photos := b.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return BookingResponse{
		ID:                  b.ID,
		UUID:                b.UUID.String(),
		TripID:              b.TripID.String(),
		SenderID:            b.SenderID.String(),
		CarrierID:           b.CarrierID.String(),
		PackageDescription:  b.PackageDescription,
		Weight:              b.Weight,
		ProposedPrice:       b.ProposedPrice,
		FinalPrice:          b.FinalPrice,
		Currency:            b.Currency,
		PickupAddress:       b.PickupAddress,
		DeliveryAddress:     b.DeliveryAddress,
		SpecialInstructions: b.SpecialInstructions,
		PhotoURLs:           photos,
		Status:              b.Status,
		CancellationReason:  b.CancellationReason,
		CancellationDetails: b.CancellationDetails,
		ExpiresAt:           b.ExpiresAt,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func NegotiationToResponse(n *entity.Negotiation) NegotiationResponse {
	return NegotiationResponse{
		ID:         n.ID,
		ProposerID: n.ProposerID.String(),
		Amount:     n.Amount,
		Message:    n.Message,
		IsAccepted: n.IsAccepted,
		CreatedAt:  n.CreatedAt,
	}
}

func AuditToResponse(a *entity.BookingAudit) AuditEntryResponse {
	return AuditEntryResponse{
		Seq:        a.Seq,
		FromStatus: a.FromStatus,
		ToStatus:   a.ToStatus,
		ActorID:    a.ActorID.String(),
		ActorRole:  a.ActorRole,
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt,
	}
}
