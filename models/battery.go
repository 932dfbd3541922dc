package models

import (
	"encoding/json"
	"time"
)

// SmartBattery is a home battery traded by Frank Energie
type SmartBattery struct {
	ID                string    `json:"id"`
	Brand             string    `json:"brand"`
	Capacity          float64   `json:"capacity"`
	ExternalReference string    `json:"externalReference"`
	MaxChargePower    float64   `json:"maxChargePower"`
	MaxDischargePower float64   `json:"maxDischargePower"`
	Provider          string    `json:"provider"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type SmartBatteries []SmartBattery

// DecodeSmartBatteries decodes the SmartBatteries query
func DecodeSmartBatteries(data json.RawMessage) (SmartBatteries, error) {
	var out SmartBatteries
	if err := decodeRoot(data, "smartBatteries", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SmartBatterySession is the trading result of one day
type SmartBatterySession struct {
	Date                    string  `json:"date"`
	TradingResult           float64 `json:"tradingResult"`
	CumulativeTradingResult float64 `json:"cumulativeTradingResult"`
}

// SmartBatterySessions is the trading history of one battery over a period
type SmartBatterySessions struct {
	DeviceID            string                `json:"deviceId"`
	PeriodStartDate     string                `json:"periodStartDate"`
	PeriodEndDate       string                `json:"periodEndDate"`
	PeriodTradingResult float64               `json:"periodTradingResult"`
	TotalTradingResult  float64               `json:"totalTradingResult"`
	Sessions            []SmartBatterySession `json:"sessions"`
}

// DecodeSmartBatterySessions decodes the SmartBatterySessions query
func DecodeSmartBatterySessions(data json.RawMessage) (*SmartBatterySessions, error) {
	var out SmartBatterySessions
	if err := decodeRoot(data, "smartBatterySessions", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
