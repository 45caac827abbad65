package models

// OptionQuote is one option row of a day's F&O bhavcopy.
type OptionQuote struct {
	Symbol       string
	Instrument   InstrumentType
	Expiry       Date
	Strike       float64
	Side         Side
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Settle       float64
	Contracts    int64
	OpenInterest int64
}

// DayData is everything the aggregator needs for one symbol on one date.
type DayData struct {
	Date       Date
	Underlying float64
	Quotes     []OptionQuote
}
