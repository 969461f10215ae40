package backend

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

// loyaltyBalanceKeys lists the balance field spellings the backend has used,
// in order of preference.
var loyaltyBalanceKeys = []string{
	"current_balance",
	"balance",
	"points",
	"total_points",
	"loyalty_points",
}

// DecodeIngredients parses the ingredient catalog. Entries use
// additional_price, falling back to price.
func DecodeIngredients(body []byte) ([]catalog.Ingredient, error) {
	var out []catalog.Ingredient
	err := decodeList(body, func(d *jx.Decoder) error {
		var (
			ing             catalog.Ingredient
			additional, raw decimal.NullDecimal
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				ing.ID, err = decodeInt(d)
			case "name":
				ing.Name, err = decodeString(d)
			case "additional_price":
				additional, err = decodeNullDecimal(d)
			case "price":
				raw, err = decodeNullDecimal(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		ing.AdditionalPrice = firstDecimal(additional, raw).Decimal
		out = append(out, ing)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode ingredients")
	}
	return out, nil
}

// DecodeIngredientRules parses a product's ingredient rules. The ingredient
// is identified by ingredient_id, falling back to id.
func DecodeIngredientRules(body []byte) ([]catalog.IngredientRule, error) {
	var out []catalog.IngredientRule
	err := decodeList(body, func(d *jx.Decoder) error {
		var (
			rule              catalog.IngredientRule
			id, ingredientID  int64
			additional, price decimal.NullDecimal
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				id, err = decodeInt(d)
			case "ingredient_id":
				ingredientID, err = decodeInt(d)
			case "name":
				rule.Name, err = decodeString(d)
			case "portions":
				rule.Portions, err = decodeSmallInt(d)
			case "min_quantity":
				rule.MinQuantity, err = decodeSmallInt(d)
			case "max_quantity":
				rule.MaxQuantity, err = decodeOptionalInt(d)
			case "additional_price":
				additional, err = decodeNullDecimal(d)
			case "price":
				price, err = decodeNullDecimal(d)
			case "ingredient":
				// Nested ingredient record: only its name and price are used.
				if d.Next() != jx.Object {
					return d.Skip()
				}
				err = d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						if rule.Name == "" {
							rule.Name, err = decodeString(d)
						} else {
							err = d.Skip()
						}
					case "additional_price":
						if !additional.Valid {
							additional, err = decodeNullDecimal(d)
						} else {
							err = d.Skip()
						}
					default:
						err = d.Skip()
					}
					return err
				})
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		rule.IngredientID = ingredientID
		if rule.IngredientID == 0 {
			rule.IngredientID = id
		}
		rule.Portions = max(0, rule.Portions)
		rule.MinQuantity = max(0, rule.MinQuantity)
		rule.AdditionalPrice = firstDecimal(additional, price)
		out = append(out, rule)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode ingredient rules")
	}
	return out, nil
}

// DecodeProduct parses a product record.
func DecodeProduct(body []byte) (*catalog.Product, error) {
	var (
		p                catalog.Product
		price, basePrice decimal.NullDecimal
	)
	err := jx.DecodeBytes(unwrap(body)).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeInt(d)
		case "name":
			p.Name, err = decodeString(d)
		case "description":
			p.Description, err = decodeString(d)
		case "price":
			price, err = decodeNullDecimal(d)
		case "base_price":
			basePrice, err = decodeNullDecimal(d)
		case "image", "image_url":
			var s string
			s, err = decodeString(d)
			if p.Image == "" {
				p.Image = s
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	p.BasePrice = firstDecimal(basePrice, price).Decimal
	return &p, nil
}

// DecodeSettings parses the public settings. Missing fields are zero.
func DecodeSettings(body []byte) (*catalog.Settings, error) {
	s := catalog.Settings{
		DeliveryFee:    decimal.Zero,
		GainRate:       decimal.Zero,
		RedemptionRate: decimal.Zero,
	}
	err := jx.DecodeBytes(unwrap(body)).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "delivery_fee":
			v, err := decodeNullDecimal(d)
			s.DeliveryFee = v.Decimal
			return err
		case "loyalty_rates":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				var (
					v   decimal.NullDecimal
					err error
				)
				switch key {
				case "gain_rate":
					v, err = decodeNullDecimal(d)
					s.GainRate = v.Decimal
				case "redemption_rate":
					v, err = decodeNullDecimal(d)
					s.RedemptionRate = v.Decimal
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &s, nil
}

// DecodeLoyaltyBalance parses a loyalty balance record. The first alias in
// loyaltyBalanceKeys carrying a number wins; none yields zero.
func DecodeLoyaltyBalance(body []byte) (int64, error) {
	found := make(map[string]int64, len(loyaltyBalanceKeys))
	err := jx.DecodeBytes(unwrap(body)).Obj(func(d *jx.Decoder, key string) error {
		for _, k := range loyaltyBalanceKeys {
			if k != key {
				continue
			}
			v, err := decodeNullDecimal(d)
			if err != nil {
				return err
			}
			if v.Valid {
				found[key] = v.Decimal.IntPart()
			}
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		return 0, errors.Wrap(err, "decode loyalty balance")
	}
	for _, k := range loyaltyBalanceKeys {
		if v, ok := found[k]; ok {
			return max(0, v), nil
		}
	}
	return 0, nil
}

// DecodeCreated parses the order creation response.
func DecodeCreated(body []byte) (*order.Created, error) {
	var (
		c            order.Created
		total, final decimal.NullDecimal
	)
	err := jx.DecodeBytes(unwrap(body)).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "order_id":
			var id int64
			id, err = decodeInt(d)
			if c.ID == 0 {
				c.ID = id
			}
		case "status":
			c.Status, err = decodeString(d)
		case "total":
			total, err = decodeNullDecimal(d)
		case "final_total":
			final, err = decodeNullDecimal(d)
		case "created_at":
			var s string
			s, err = decodeString(d)
			if t, perr := time.Parse(time.RFC3339, s); perr == nil {
				c.CreatedAt = t
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode created order")
	}
	c.Total = firstDecimal(final, total).Decimal
	return &c, nil
}

// decodeMessage extracts a human-readable message from an error body.
func decodeMessage(body []byte) string {
	var msg, alt string
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message":
			msg, err = decodeString(d)
		case "error":
			alt, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if msg != "" {
		return msg
	}
	return alt
}

// unwrap returns the value of a top-level "data" envelope, or body itself.
func unwrap(body []byte) []byte {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return body
	}
	var data []byte
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "data" || data != nil {
			return d.Skip()
		}
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		data = append([]byte(nil), raw...)
		return nil
	}); err != nil || data == nil {
		return body
	}
	return data
}

func decodeList(body []byte, fn func(d *jx.Decoder) error) error {
	d := jx.DecodeBytes(unwrap(body))
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		return fn(d)
	})
}

// decodeNullDecimal reads a number, a numeric string (comma decimals
// allowed) or null. Values that are not numbers are reported as null.
func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	switch d.Next() {
	case jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(string(raw))
		if err != nil {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NewNullDecimal(v), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return parseLooseDecimal(s), nil
	default:
		return decimal.NullDecimal{}, d.Skip()
	}
}

func parseLooseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func decodeInt(d *jx.Decoder) (int64, error) {
	v, err := decodeNullDecimal(d)
	if err != nil || !v.Valid {
		return 0, err
	}
	return v.Decimal.IntPart(), nil
}

func decodeSmallInt(d *jx.Decoder) (int, error) {
	v, err := decodeInt(d)
	return int(v), err
}

func decodeOptionalInt(d *jx.Decoder) (*int, error) {
	v, err := decodeNullDecimal(d)
	if err != nil || !v.Valid {
		return nil, err
	}
	n := int(v.Decimal.IntPart())
	return &n, nil
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

func firstDecimal(vs ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range vs {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{Decimal: decimal.Zero}
}
