package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Price is the tariff for one hour, in EUR per kWh or per m³
type Price struct {
	From                time.Time `json:"from"`
	Till                time.Time `json:"till"`
	MarketPrice         float64   `json:"marketPrice"`
	MarketPriceTax      float64   `json:"marketPriceTax"`
	SourcingMarkupPrice float64   `json:"sourcingMarkupPrice"`
	EnergyTaxPrice      float64   `json:"energyTaxPrice"`
}

// Total is the all-in price
func (p Price) Total() float64 {
	return round(p.MarketPrice+p.MarketPriceTax+p.SourcingMarkupPrice+p.EnergyTaxPrice, 4)
}

// MarketPriceWithTax is the market price including VAT
func (p Price) MarketPriceWithTax() float64 {
	return round(p.MarketPrice+p.MarketPriceTax, 4)
}

// ForNow reports whether now falls within this price's hour
func (p Price) ForNow(now time.Time) bool {
	return !now.Before(p.From) && now.Before(p.Till)
}

// ForToday reports whether this price lies within the calendar day of now,
// in now's location
func (p Price) ForToday(now time.Time) bool {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return !p.From.Before(start) && !p.Till.After(end)
}

// ForFuture reports whether this price starts after now
func (p Price) ForFuture(now time.Time) bool {
	return p.From.After(now)
}

func (p Price) String() string {
	return fmt.Sprintf("%s -> %s: %.4f", p.From.Format(time.RFC3339), p.Till.Format(time.RFC3339), p.Total())
}

// PriceData is a series of hourly prices
type PriceData []Price

// All returns every price in the series
func (d PriceData) All() []Price {
	return d
}

// Append returns a new series holding d followed by other
func (d PriceData) Append(other PriceData) PriceData {
	out := make(PriceData, 0, len(d)+len(other))
	out = append(out, d...)
	return append(out, other...)
}

// Today returns the prices for the calendar day of now
func (d PriceData) Today(now time.Time) PriceData {
	var out PriceData
	for _, p := range d {
		if p.ForToday(now) {
			out = append(out, p)
		}
	}
	return out
}

// Future returns the prices starting after now
func (d PriceData) Future(now time.Time) PriceData {
	var out PriceData
	for _, p := range d {
		if p.ForFuture(now) {
			out = append(out, p)
		}
	}
	return out
}

// CurrentHour returns the price that applies at now
func (d PriceData) CurrentHour(now time.Time) (Price, bool) {
	for _, p := range d {
		if p.ForNow(now) {
			return p, true
		}
	}
	return Price{}, false
}

// TodayMin returns today's cheapest hour
func (d PriceData) TodayMin(now time.Time) (Price, bool) {
	return pick(d.Today(now), func(a, b Price) bool { return a.Total() < b.Total() })
}

// TodayMax returns today's most expensive hour
func (d PriceData) TodayMax(now time.Time) (Price, bool) {
	return pick(d.Today(now), func(a, b Price) bool { return a.Total() > b.Total() })
}

// TodayAvg returns the mean total price of today's hours, or 0 when there are none
func (d PriceData) TodayAvg(now time.Time) float64 {
	today := d.Today(now)
	if len(today) == 0 {
		return 0
	}
	var sum float64
	for _, p := range today {
		sum += p.Total()
	}
	return round(sum/float64(len(today)), 5)
}

// pick returns the first element that no later element beats
func pick(prices PriceData, better func(a, b Price) bool) (Price, bool) {
	if len(prices) == 0 {
		return Price{}, false
	}
	best := prices[0]
	for _, p := range prices[1:] {
		if better(p, best) {
			best = p
		}
	}
	return best, true
}

// MarketPrices pairs electricity and gas price series
type MarketPrices struct {
	Electricity PriceData `json:"electricity"`
	Gas         PriceData `json:"gas"`
}

// DecodeMarketPrices decodes the public MarketPrices query
func DecodeMarketPrices(data json.RawMessage) (*MarketPrices, error) {
	var out MarketPrices
	if err := decodeRoot(data, "marketPricesElectricity", &out.Electricity); err != nil {
		return nil, err
	}
	if err := decodeRoot(data, "marketPricesGas", &out.Gas); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeCustomerMarketPrices decodes the customerMarketPrices query, whose
// fields are aliased onto the Price shape
func DecodeCustomerMarketPrices(data json.RawMessage) (*MarketPrices, error) {
	var payload struct {
		ElectricityPrices PriceData `json:"electricityPrices"`
		GasPrices         PriceData `json:"gasPrices"`
	}
	if err := decodeRoot(data, "customerMarketPrices", &payload); err != nil {
		return nil, err
	}
	return &MarketPrices{Electricity: payload.ElectricityPrices, Gas: payload.GasPrices}, nil
}
