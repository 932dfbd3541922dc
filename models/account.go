package models

import (
	"encoding/json"
	"strings"
)

// MonthSummary is the running cost of the current month
type MonthSummary struct {
	ActualCostsUntilLastMeterReadingDate   float64 `json:"actualCostsUntilLastMeterReadingDate"`
	ExpectedCostsUntilLastMeterReadingDate float64 `json:"expectedCostsUntilLastMeterReadingDate"`
	ExpectedCosts                          float64 `json:"expectedCosts"`
	LastMeterReadingDate                   string  `json:"lastMeterReadingDate"`
}

// DecodeMonthSummary decodes the MonthSummary query
func DecodeMonthSummary(data json.RawMessage) (*MonthSummary, error) {
	var out MonthSummary
	if err := decodeRoot(data, "monthSummary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Invoice is one billing period
type Invoice struct {
	StartDate         string  `json:"StartDate"`
	PeriodDescription string  `json:"PeriodDescription"`
	TotalAmount       float64 `json:"TotalAmount"`
}

// Invoices holds the previous, current and upcoming billing periods; any may be nil
type Invoices struct {
	Previous *Invoice `json:"previousPeriodInvoice"`
	Current  *Invoice `json:"currentPeriodInvoice"`
	Upcoming *Invoice `json:"upcomingPeriodInvoice"`
}

// DecodeInvoices decodes the Invoices query
func DecodeInvoices(data json.RawMessage) (*Invoices, error) {
	var out Invoices
	if err := decodeRoot(data, "invoices", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Address struct {
	Street              string `json:"street"`
	HouseNumber         string `json:"houseNumber"`
	HouseNumberAddition string `json:"houseNumberAddition"`
	ZipCode             string `json:"zipCode"`
	City                string `json:"city"`
}

func (a Address) String() string {
	number := strings.TrimSpace(a.HouseNumber + " " + a.HouseNumberAddition)
	parts := []string{strings.TrimSpace(a.Street + " " + number), strings.TrimSpace(a.ZipCode + " " + a.City)}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// DeliverySite is a connection address; its Reference is the site reference
// that account queries take
type DeliverySite struct {
	Reference string   `json:"reference"`
	Segments  []string `json:"segments"`
	Address   Address  `json:"address"`
	Status    string   `json:"status"`
}

// User is the logged-in account
type User struct {
	ID                    string         `json:"id"`
	Email                 string         `json:"email"`
	CountryCode           string         `json:"countryCode"`
	AdvancedPaymentAmount *float64       `json:"advancedPaymentAmount"`
	TreesCount            int            `json:"treesCount"`
	HasInviteLink         bool           `json:"hasInviteLink"`
	HasCO2Compensation    bool           `json:"hasCO2Compensation"`
	DeliverySites         []DeliverySite `json:"deliverySites"`
}

// DecodeUser decodes the Me query
func DecodeUser(data json.RawMessage) (*User, error) {
	var out User
	if err := decodeRoot(data, "me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
