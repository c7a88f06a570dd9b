package customers

type AddressRequest struct {
	Street  string `json:"street" validate:"omitempty,max=200"`
	City    string `json:"city" validate:"omitempty,max=100"`
	State   string `json:"state" validate:"omitempty,max=100"`
	Pincode string `json:"pincode" validate:"omitempty,len=6,numeric"`
}

type CreateCustomerRequest struct {
	Name    string          `json:"name" validate:"required,min=2,max=120"`
	Phone   string          `json:"phone" validate:"required,len=10,numeric"`
	Email   *string         `json:"email,omitempty" validate:"omitempty,email"`
	Address *AddressRequest `json:"address,omitempty"`
}

type UpdateCustomerRequest struct {
	Name    *string         `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone   *string         `json:"phone,omitempty" validate:"omitempty,len=10,numeric"`
	Email   *string         `json:"email,omitempty" validate:"omitempty,email"`
	Address *AddressRequest `json:"address,omitempty"`
}
