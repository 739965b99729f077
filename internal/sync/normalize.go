package sync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bolibana/boutique/internal/b2b"
	"github.com/shopspring/decimal"
)

// ToNumber parses the upstream's heterogeneous numerics: ints, floats, and
// strings in either the European ("1.234,56") or US ("1,234.56") convention.
// When both separators appear, the rightmost one is the decimal separator.
// A lone dot followed by only zeros marks an integer ("12.000" -> 12).
// With integer=true the result is truncated toward zero.
func ToNumber(raw any, integer bool) (decimal.Decimal, error) {
	var value decimal.Decimal

	switch v := raw.(type) {
	case nil:
		return value, fmt.Errorf("no numeric value")
	case decimal.Decimal:
		value = v
	case int:
		value = decimal.NewFromInt(int64(v))
	case int64:
		value = decimal.NewFromInt(v)
	case float64:
		value = decimal.NewFromFloat(v)
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return value, err
		}
		value = parsed
	case string:
		parsed, err := parseNumericString(v)
		if err != nil {
			return value, err
		}
		value = parsed
	default:
		return value, fmt.Errorf("unsupported numeric type %T", raw)
	}

	if integer {
		value = value.Truncate(0)
	}
	return value, nil
}

func parseNumericString(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric string")
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			// European: dot is the thousands separator.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// US: comma is the thousands separator.
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		// A lone comma is a decimal separator.
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0:
		fraction := s[dot+1:]
		if fraction != "" && strings.Count(fraction, "0") == len(fraction) {
			// "12.000" is the integer 12, not twelve thousand.
			s = s[:dot]
		}
	}

	return decimal.NewFromString(s)
}

// Truthy interprets the upstream's loosely typed flags.
func Truthy(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on", "oui":
			return true
		}
		return false
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		return v.String() != "0" && v.String() != ""
	default:
		return false
	}
}

var weightUnits = map[string]bool{
	"weight":   true,
	"kg":       true,
	"kilogram": true,
	"poids":    true,
}

// IsByWeight reports whether the record sells by mass rather than by unit.
func IsByWeight(rec *b2b.ProductRecord) bool {
	if Truthy(rec.SoldByWeight) || Truthy(rec.ByWeight) {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(rec.SaleUnitType), "weight") {
		return true
	}
	if weightUnits[strings.ToLower(strings.TrimSpace(rec.UnitType))] {
		return true
	}
	if weightUnits[strings.ToLower(strings.TrimSpace(rec.SellingUnit))] {
		return true
	}
	// Weight-specific pricing or stock fields imply by-weight on their own.
	if rec.PricePerKg != nil || rec.AvailableWeight != nil {
		return true
	}
	return false
}

// WeightFacts is the by-weight bookkeeping derived from one record.
type WeightFacts struct {
	WeightKg   decimal.Decimal
	WeightG    decimal.Decimal
	PricePerKg decimal.Decimal
	PricePerG  decimal.Decimal
	UnitIsGram bool
	Stock      int
}

// DeriveWeightFacts interprets the upstream quantity as a mass in the declared
// unit and normalizes prices to per-kilogram.
func DeriveWeightFacts(rec *b2b.ProductRecord, unitPrice decimal.Decimal) WeightFacts {
	facts := WeightFacts{}

	unit := strings.ToLower(strings.TrimSpace(rec.WeightUnit))
	facts.UnitIsGram = unit == "g" || unit == "gram" || unit == "gramme"

	quantity := rec.Quantity
	if quantity == nil {
		quantity = rec.AvailableWeight
	}
	if quantity == nil {
		quantity = rec.Stock
	}
	amount, err := ToNumber(quantity, false)
	if err != nil {
		amount = decimal.Zero
	}

	thousand := decimal.NewFromInt(1000)
	if facts.UnitIsGram {
		facts.WeightG = amount
		facts.WeightKg = amount.Div(thousand)
		facts.PricePerG = unitPrice
		facts.PricePerKg = unitPrice.Mul(thousand)
	} else {
		facts.WeightKg = amount
		facts.WeightG = amount.Mul(thousand)
		facts.PricePerKg = unitPrice
	}

	if facts.WeightKg.Sign() > 0 {
		facts.Stock = int(facts.WeightKg.IntPart())
	}
	return facts
}

// ResolveAvailability applies the upstream flag preference order, defaulting
// to available.
func ResolveAvailability(rec *b2b.ProductRecord) bool {
	if rec.IsAvailableB2C != nil {
		return *rec.IsAvailableB2C
	}
	if rec.IsAvailable != nil {
		return *rec.IsAvailable
	}
	if rec.IsActive != nil {
		return *rec.IsActive
	}
	if rec.Available != nil {
		return *rec.Available
	}
	return true
}

// ResolveTitle applies the name alias order with the upstream's French
// placeholder as last resort.
func ResolveTitle(rec *b2b.ProductRecord) string {
	if name := strings.TrimSpace(rec.Name); name != "" {
		return name
	}
	if title := strings.TrimSpace(rec.Title); title != "" {
		return title
	}
	return "Produit sans nom"
}

// ResolvePrice applies the price alias order, defaulting to zero.
func ResolvePrice(rec *b2b.ProductRecord) decimal.Decimal {
	for _, raw := range []any{rec.SellingPrice, rec.Price, rec.UnitPrice} {
		if raw == nil {
			continue
		}
		if value, err := ToNumber(raw, false); err == nil {
			return value
		}
	}
	return decimal.Zero
}

// ResolveSKU applies the sku alias order.
func ResolveSKU(rec *b2b.ProductRecord) string {
	for _, raw := range []any{rec.CUG, rec.SKU, rec.Code} {
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
