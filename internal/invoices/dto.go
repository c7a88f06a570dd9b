package invoices

// Line item and total constraints are checked by the service, which names the
// offending item; the validator covers only the shape checks it does not.
type CreateLineItemRequest struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CreateInvoiceRequest struct {
	Customer struct {
		Name  string  `json:"name"`
		Phone *string `json:"phone,omitempty" validate:"omitempty,len=10,numeric"`
	} `json:"customer"`
	Items       []CreateLineItemRequest `json:"items"`
	TotalAmount *float64                `json:"total_amount,omitempty" validate:"omitempty,gte=0"`
}
