package medicines

import "time"

type CreateMedicineRequest struct {
	Name     string    `json:"name" validate:"required,min=2,max=120"`
	Quantity int       `json:"quantity" validate:"gte=0"`
	Price    float64   `json:"price" validate:"gte=0"`
	Expiry   time.Time `json:"expiry" validate:"required"`
}

type UpdateMedicineRequest struct {
	Name     *string    `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Quantity *int       `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Price    *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Expiry   *time.Time `json:"expiry,omitempty"`
}

type ListMedicinesRequest struct {
	Search   string `json:"search" validate:"omitempty,max=120"`
	MaxStock *int   `json:"max_stock,omitempty" validate:"omitempty,gte=0"`
	Limit    int    `json:"limit" validate:"gte=0,lte=500"`
	Offset   int    `json:"offset" validate:"gte=0"`
}
