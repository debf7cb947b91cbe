package shipping

import (
	"math"
	"strings"
)

// Quote is a shipping estimate for a destination city and parcel weight.
type Quote struct {
	Carrier       string  `json:"carrier"`
	CostSAR       float64 `json:"cost_sar"`
	EstimatedDays int     `json:"estimated_days"`
	Trackable     bool    `json:"trackable"`
}

const (
	carrierName      = "SMSA Express"
	defaultBaseSAR   = 40
	includedWeightKG = 0.5
	surchargePerKG   = 5
)

var baseRates = map[string]float64{
	"riyadh": 15,
	"jeddah": 20,
	"dammam": 20,
	"mecca":  25,
	"medina": 25,
	"khobar": 22,
	"tabuk":  35,
	"abha":   35,
}

// major metro areas with next-day-ish SMSA coverage
var fastCities = map[string]bool{
	"riyadh": true,
	"jeddah": true,
	"dammam": true,
}

// Estimate returns a shipping quote for the given city and total weight.
// Unknown cities fall back to the default base rate rather than failing.
func Estimate(city string, weightKG float64) Quote {
	normalized := strings.ToLower(strings.TrimSpace(city))

	base, ok := baseRates[normalized]
	if !ok {
		base = defaultBaseSAR
	}

	surcharge := math.Max(0, (weightKG-includedWeightKG)*surchargePerKG)

	days := 4
	if fastCities[normalized] {
		days = 2
	}

	return Quote{
		Carrier:       carrierName,
		CostSAR:       math.Round((base+surcharge)*100) / 100,
		EstimatedDays: days,
		Trackable:     true,
	}
}
