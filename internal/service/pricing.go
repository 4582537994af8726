package service

import (
	"math"

	"roadside-portal/internal/storage"
)

// ServiceRate prices one kind of roadside service
type ServiceRate struct {
	BaseFare float64 // Call-out charge
	PerKm    float64 // Distance charge, zero for flat-rate services
}

// PricingConfig holds pricing parameters, in rupees
type PricingConfig struct {
	ServiceRates map[string]ServiceRate
}

// DefaultPricingConfig returns standard city pricing
func DefaultPricingConfig() *PricingConfig {
	return &PricingConfig{
		ServiceRates: map[string]ServiceRate{
			"mechanical": {BaseFare: 499},
			"battery":    {BaseFare: 349},
			"fuel":       {BaseFare: 249, PerKm: 10},
			"lockout":    {BaseFare: 399},
			"tire":       {BaseFare: 299},
			"ev":         {BaseFare: 599},
			"winching":   {BaseFare: 999, PerKm: 25},
			"towing":     {BaseFare: 799, PerKm: 35},
		},
	}
}

// EstimatePrice fills the job's estimated price from its service type and estimated distance
func (p *PricingConfig) EstimatePrice(job *storage.Job) {
	rate, ok := p.ServiceRates[job.ServiceType]
	if !ok {
		return
	}

	price := rate.BaseFare
	if job.EstimatedDistance != nil && rate.PerKm > 0 {
		price += *job.EstimatedDistance * rate.PerKm
	}

	// Round to whole rupees
	price = math.Round(price)
	job.EstimatedPrice = &price
}
