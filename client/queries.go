package client

import (
	"context"
	"time"

	"github.com/devilmonastery/frankenergie/graphql"
	"github.com/devilmonastery/frankenergie/models"
)

const dateLayout = "2006-01-02"

const priceFields = `
	from
	till
	marketPrice
	marketPriceTax
	sourcingMarkupPrice
	energyTaxPrice
`

const marketPricesQuery = `
	query MarketPrices($startDate: Date!, $endDate: Date!) {
		marketPricesElectricity(startDate: $startDate, endDate: $endDate) {` + priceFields + `}
		marketPricesGas(startDate: $startDate, endDate: $endDate) {` + priceFields + `}
	}
`

const customerMarketPricesQuery = `
	query MarketPrices($date: String!, $siteReference: String!) {
		customerMarketPrices(date: $date, siteReference: $siteReference) {
			electricityPrices {
				from
				till
				marketPrice
				marketPriceTax
				sourcingMarkupPrice: consumptionSourcingMarkupPrice
				energyTaxPrice: energyTax
			}
			gasPrices {
				from
				till
				marketPrice
				marketPriceTax
				sourcingMarkupPrice: consumptionSourcingMarkupPrice
				energyTaxPrice: energyTax
			}
		}
	}
`

const monthSummaryQuery = `
	query MonthSummary($siteReference: String!) {
		monthSummary(siteReference: $siteReference) {
			actualCostsUntilLastMeterReadingDate
			expectedCostsUntilLastMeterReadingDate
			expectedCosts
			lastMeterReadingDate
		}
	}
`

const invoicesQuery = `
	query Invoices($siteReference: String!) {
		invoices(siteReference: $siteReference) {
			previousPeriodInvoice { StartDate PeriodDescription TotalAmount }
			currentPeriodInvoice { StartDate PeriodDescription TotalAmount }
			upcomingPeriodInvoice { StartDate PeriodDescription TotalAmount }
		}
	}
`

const meQuery = `
	query Me($siteReference: String) {
		me {
			...UserFields
		}
	}
	fragment UserFields on User {
		id
		email
		countryCode
		advancedPaymentAmount(siteReference: $siteReference)
		treesCount
		hasInviteLink
		hasCO2Compensation
		deliverySites {
			reference
			segments
			address {
				street
				houseNumber
				houseNumberAddition
				zipCode
				city
			}
			status
		}
	}
`

const smartBatteriesQuery = `
	query SmartBatteries {
		smartBatteries {
			brand
			capacity
			createdAt
			externalReference
			id
			maxChargePower
			maxDischargePower
			provider
			updatedAt
		}
	}
`

const smartBatterySessionsQuery = `
	query SmartBatterySessions($startDate: String!, $endDate: String!, $deviceId: String!) {
		smartBatterySessions(startDate: $startDate, endDate: $endDate, deviceId: $deviceId) {
			deviceId
			periodEndDate
			periodStartDate
			periodTradingResult
			sessions {
				cumulativeTradingResult
				date
				tradingResult
			}
			totalTradingResult
		}
	}
`

// Prices returns the public market prices from start up to end. A zero end
// means the day after start. No login is needed.
func (c *Client) Prices(ctx context.Context, start, end time.Time) (*models.MarketPrices, error) {
	if end.IsZero() {
		end = start.AddDate(0, 0, 1)
	}
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         marketPricesQuery,
		OperationName: "MarketPrices",
		Variables: map[string]any{
			"startDate": start.Format(dateLayout),
			"endDate":   end.Format(dateLayout),
		},
	}, false)
	if err != nil {
		return nil, err
	}
	return models.DecodeMarketPrices(resp.Data)
}

// UserPrices returns the customer-specific prices for one day at a delivery site
func (c *Client) UserPrices(ctx context.Context, date time.Time, siteReference string) (*models.MarketPrices, error) {
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         customerMarketPricesQuery,
		OperationName: "MarketPrices",
		Variables: map[string]any{
			"date":          date.Format(dateLayout),
			"siteReference": siteReference,
		},
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeCustomerMarketPrices(resp.Data)
}

// MonthSummary returns this month's costs so far
func (c *Client) MonthSummary(ctx context.Context, siteReference string) (*models.MonthSummary, error) {
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         monthSummaryQuery,
		OperationName: "MonthSummary",
		Variables:     map[string]any{"siteReference": siteReference},
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeMonthSummary(resp.Data)
}

// Invoices returns the previous, current and upcoming invoices
func (c *Client) Invoices(ctx context.Context, siteReference string) (*models.Invoices, error) {
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         invoicesQuery,
		OperationName: "Invoices",
		Variables:     map[string]any{"siteReference": siteReference},
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeInvoices(resp.Data)
}

// Me returns the logged-in user. siteReference scopes the advance payment
// amount and may be empty.
func (c *Client) Me(ctx context.Context, siteReference string) (*models.User, error) {
	var ref any
	if siteReference != "" {
		ref = siteReference
	}
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         meQuery,
		OperationName: "Me",
		Variables:     map[string]any{"siteReference": ref},
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeUser(resp.Data)
}

// SmartBatteries lists the smart batteries registered to the account
func (c *Client) SmartBatteries(ctx context.Context) (models.SmartBatteries, error) {
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         smartBatteriesQuery,
		OperationName: "SmartBatteries",
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeSmartBatteries(resp.Data)
}

// SmartBatterySessions returns the daily trading results of one battery
func (c *Client) SmartBatterySessions(ctx context.Context, deviceID string, start, end time.Time) (*models.SmartBatterySessions, error) {
	resp, err := c.Execute(ctx, graphql.Request{
		Query:         smartBatterySessionsQuery,
		OperationName: "SmartBatterySessions",
		Variables: map[string]any{
			"deviceId":  deviceID,
			"startDate": start.Format(dateLayout),
			"endDate":   end.Format(dateLayout),
		},
	}, true)
	if err != nil {
		return nil, err
	}
	return models.DecodeSmartBatterySessions(resp.Data)
}
