package entity

import "time"

type Plan struct {
	ID                uint64
	Name              string
	PriceCents        int64
	DurationDays      int32
	SeatLimit         int32
	IsTrial           bool
	AllowInstallments bool
	MaxInstallments   int32
	AbsorbsGatewayFee bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Free reports whether the plan can be activated without a payment intent.
func (p *Plan) Free() bool {
	return p.IsTrial || p.PriceCents == 0
}
