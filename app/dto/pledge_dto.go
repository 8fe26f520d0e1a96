package dto

// CreatePledgeRequest is the public pledge form submission
type CreatePledgeRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Seats    int    `json:"seats" validate:"required,min=1,max=20"`
}

// CreatePledgeResponse is returned once the pledge row and vault intent exist.
// Field names are consumed by the payment form as-is.
type CreatePledgeResponse struct {
	Success      bool   `json:"success"`
	ClientSecret string `json:"client_secret"`
	PledgeID     string `json:"pledge_id"`
}

// CreatePledgeErrorResponse is the error shape of the create endpoint
type CreatePledgeErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// CancelPledgeRequest proves ownership of a pledge with the emailed secret
type CancelPledgeRequest struct {
	Email  string `json:"email" validate:"required,email,max=255"`
	Secret string `json:"secret" validate:"required,min=1,max=512"`
}

// CancelPledgeResponse is the shape of every cancel endpoint response
type CancelPledgeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// AttachPaymentMethodRequest records the confirmed card of a pledge
type AttachPaymentMethodRequest struct {
	PledgeID      string `json:"-" validate:"required,uuid"` // from path
	SetupIntentID string `json:"setup_intent_id" validate:"required,max=255"`
}

// AttachPaymentMethodResponse describes the stored payment method
type AttachPaymentMethodResponse struct {
	PledgeID        string `json:"pledge_id"`
	PaymentMethodID string `json:"payment_method_id"`
	AttachedAt      string `json:"attached_at"`
	AlreadyAttached bool   `json:"already_attached"`
}

// PledgeQuoteRequest asks for the monthly price of a seat count
type PledgeQuoteRequest struct {
	Seats int `query:"seats" validate:"required,min=1,max=20"`
}

// FounderRewardDTO is one reward unlocked by a seat count
type FounderRewardDTO struct {
	Name        string `json:"name"`
	MinSeats    int    `json:"min_seats"`
	Description string `json:"description"`
}

// PledgeQuoteResponse is the price breakdown for a seat count
type PledgeQuoteResponse struct {
	Seats               int                `json:"seats"`
	TotalAmount         int64              `json:"total_amount"`
	Currency            string             `json:"currency"`
	BaseSeatPrice       int64              `json:"base_seat_price"`
	AdditionalSeatPrice int64              `json:"additional_seat_price"`
	Plan                string             `json:"plan"`
	Rewards             []FounderRewardDTO `json:"rewards"`
}
