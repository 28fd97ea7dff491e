// Package units normalizes free-text unit strings from heterogeneous source
// datasets and performs dimensionally-checked conversions between them.
// A silent cross-dimension conversion would corrupt a regulatory emissions
// figure without any visible error, so the dimension check never relaxes.
package units

// Dimension classifies a unit into a physical dimension.
type Dimension string

const (
	Energy   Dimension = "energy"
	Mass     Dimension = "mass"
	Distance Dimension = "distance"
	Volume   Dimension = "volume"
	Area     Dimension = "area"
	Time     Dimension = "time"
	Currency Dimension = "currency"
	CO2e     Dimension = "co2e"
)

// unitDef describes a known unit: its dimension, its multiplier to the
// dimension's canonical unit, and whether it is pass-through (never
// auto-converted).
type unitDef struct {
	dim         Dimension
	toCanonical float64
	passthrough bool
}

// canonicalUnits maps each convertible dimension to its canonical unit.
var canonicalUnits = map[Dimension]string{
	Energy:   "kWh",
	Mass:     "kg",
	Distance: "km",
	Volume:   "L",
	Area:     "m2",
	Time:     "hour",
}

// aliases resolves lowercased free-text spellings to the canonical spelling
// of a known unit. DEFRA writes "m3", EPA writes "mmBtu", EXIOBASE writes
// "M.EUR"; all of those land here.
var aliases = map[string]string{
	// energy
	"wh": "Wh", "kwh": "kWh", "mwh": "MWh", "gwh": "GWh",
	"kilowatt-hour": "kWh", "kilowatt hour": "kWh", "kilowatt hours": "kWh",
	"megawatt-hour": "MWh", "megawatt hours": "MWh",
	"kj": "kJ", "mj": "MJ", "gj": "GJ",
	"btu": "Btu", "mmbtu": "mmBtu", "therm": "therm", "therms": "therm",

	// mass
	"g": "g", "gram": "g", "grams": "g",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg",
	"t": "tonne", "tonne": "tonne", "tonnes": "tonne", "mt": "tonne",
	"metric ton": "tonne", "metric tons": "tonne", "metric tonnes": "tonne",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"short ton": "ton", "short tons": "ton",

	// distance
	"m": "m", "metre": "m", "metres": "m", "meter": "m", "meters": "m",
	"km": "km", "kilometre": "km", "kilometres": "km", "kilometer": "km", "kilometers": "km",
	"mi": "mile", "mile": "mile", "miles": "mile",

	// composite transport units, kept distinct and never auto-converted
	"passenger-km": "passenger-km", "passenger.km": "passenger-km", "pkm": "passenger-km",
	"passenger km": "passenger-km",
	"tonne-km": "tonne-km", "tonne.km": "tonne-km", "tkm": "tonne-km", "tonne km": "tonne-km",

	// volume
	"ml": "mL", "millilitre": "mL", "milliliter": "mL",
	"l": "L", "litre": "L", "litres": "L", "liter": "L", "liters": "L",
	"m3": "m3", "m**3": "m3", "m^3": "m3", "m³": "m3",
	"cubic metre": "m3", "cubic metres": "m3", "cubic meter": "m3", "cubic meters": "m3",
	"gal": "gallon", "gallon": "gallon", "gallons": "gallon",

	// area
	"m2": "m2", "m**2": "m2", "m^2": "m2", "m²": "m2", "sqm": "m2", "square metre": "m2", "square meter": "m2",
	"km2": "km2", "km**2": "km2", "km²": "km2",
	"ha": "hectare", "hectare": "hectare", "hectares": "hectare",
	"ft2": "ft2", "sqft": "ft2", "square foot": "ft2", "square feet": "ft2",

	// time
	"s": "second", "sec": "second", "second": "second", "seconds": "second",
	"min": "minute", "minute": "minute", "minutes": "minute",
	"h": "hour", "hr": "hour", "hrs": "hour", "hour": "hour", "hours": "hour",
	"day": "day", "days": "day",
	"yr": "year", "year": "year", "years": "year",

	// currency (pass-through)
	"eur": "EUR", "euro": "EUR", "euros": "EUR", "€": "EUR",
	"m.eur": "M.EUR", "meur": "M.EUR", "million eur": "M.EUR",
	"usd": "USD", "$": "USD", "dollar": "USD", "dollars": "USD",
	"gbp": "GBP", "£": "GBP",

	// CO2e (pass-through)
	"gco2e": "gCO2e", "kgco2e": "kgCO2e", "kg co2e": "kgCO2e",
	"tco2e": "tCO2e", "tonne co2e": "tCO2e", "tonnes co2e": "tCO2e", "t co2e": "tCO2e",
	"co2e": "kgCO2e",
}

// defs maps canonical unit spellings to their definitions.
var defs = map[string]unitDef{
	// energy, canonical kWh
	"Wh":    {Energy, 0.001, false},
	"kWh":   {Energy, 1, false},
	"MWh":   {Energy, 1000, false},
	"GWh":   {Energy, 1e6, false},
	"kJ":    {Energy, 1.0 / 3600, false},
	"MJ":    {Energy, 1.0 / 3.6, false},
	"GJ":    {Energy, 1000.0 / 3.6, false},
	"Btu":   {Energy, 0.000293071, false},
	"mmBtu": {Energy, 293.071, false},
	"therm": {Energy, 29.3071, false},

	// mass, canonical kg
	"g":     {Mass, 0.001, false},
	"kg":    {Mass, 1, false},
	"tonne": {Mass, 1000, false},
	"lb":    {Mass, 0.45359237, false},
	"ton":   {Mass, 907.18474, false},

	// distance, canonical km
	"m":    {Distance, 0.001, false},
	"km":   {Distance, 1, false},
	"mile": {Distance, 1.609344, false},

	// composite transport units: same dimension family as distance but a
	// person-km or tonne-km is not a km, so they stay pass-through
	"passenger-km": {Distance, 1, true},
	"tonne-km":     {Distance, 1, true},

	// volume, canonical L
	"mL":     {Volume, 0.001, false},
	"L":      {Volume, 1, false},
	"m3":     {Volume, 1000, false},
	"gallon": {Volume, 3.785411784, false},

	// area, canonical m2
	"m2":      {Area, 1, false},
	"km2":     {Area, 1e6, false},
	"hectare": {Area, 10000, false},
	"ft2":     {Area, 0.09290304, false},

	// time, canonical hour
	"second": {Time, 1.0 / 3600, false},
	"minute": {Time, 1.0 / 60, false},
	"hour":   {Time, 1, false},
	"day":    {Time, 24, false},
	"year":   {Time, 8760, false},

	// currency: monetary units are never auto-converted (no FX data here)
	"EUR":   {Currency, 1, true},
	"M.EUR": {Currency, 1, true},
	"USD":   {Currency, 1, true},
	"GBP":   {Currency, 1, true},

	// CO2e: already the output unit of the engine, never converted
	"gCO2e":  {CO2e, 1, true},
	"kgCO2e": {CO2e, 1, true},
	"tCO2e":  {CO2e, 1, true},
}
