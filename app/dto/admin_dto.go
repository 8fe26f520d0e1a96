package dto

// AdminListPledgesRequest filters the admin pledge listing
type AdminListPledgesRequest struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	State    string `query:"state" validate:"omitempty,oneof=active cancelled charged"`
	Email    string `query:"email" validate:"omitempty,email"`
}

// AdminPledgeDTO is a pledge as shown to operators. It never carries the secret hash.
type AdminPledgeDTO struct {
	UUID             string  `json:"uuid"`
	FullName         string  `json:"full_name"`
	Email            string  `json:"email"`
	Seats            int     `json:"seats"`
	TotalAmount      int64   `json:"total_amount"`
	Currency         string  `json:"currency"`
	Plan             string  `json:"plan"`
	State            string  `json:"state"`
	VaultIntentID    string  `json:"stripe_setup_intent_id"`
	HasPaymentMethod bool    `json:"has_payment_method"`
	CreatedAt        string  `json:"created_at"`
	CancelledAt      *string `json:"cancelled_at,omitempty"`
}

// AdminListPledgesResponse is a page of pledges
type AdminListPledgesResponse struct {
	Items      []AdminPledgeDTO `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}

// AdminExportPledgesResponse carries a generated workbook
type AdminExportPledgesResponse struct {
	Filename    string
	ContentType string
	Content     []byte
}
