package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sku is a sellable catalog item scoped to exactly one pricebook.
// Code is unique within a pricebook, not globally: the same logical product
// may exist as distinct rows (distinct prices) per pricebook/currency.
// ParentSkuID forms a bundle tree; the parent must pre-exist at assignment
// time and a SKU can never be its own parent.
type Sku struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PricebookID uint            `gorm:"not null;index:idx_pricebook_code,unique,priority:1" json:"pricebook_id"`
	Code        string          `gorm:"size:80;not null;index:idx_pricebook_code,unique,priority:2" json:"code"`
	Name        string          `gorm:"not null" json:"name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	ParentSkuID *uint           `gorm:"index" json:"parent_sku_id,omitempty"`
	Attributes  SkuAttributes   `gorm:"type:text" json:"attributes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Reserved attribute keys lifted into typed fields on SkuAttributes.
const (
	attrRequiredOption = "is_required_option"
	attrSubscription   = "is_subscription"
	attrTermMonths     = "term_months"
)

// SkuAttributes is the open key/value bag on a SKU with the three reserved
// keys promoted to named fields. It round-trips through a single flat JSON
// object in a text column, so rows written by earlier tooling stay readable.
type SkuAttributes struct {
	IsRequiredOption bool
	IsSubscription   bool
	TermMonths       *int
	Extra            map[string]any
}

// Subscription reports whether the SKU prices as a subscription: either the
// explicit flag, or a term length present without one.
func (a SkuAttributes) Subscription() bool {
	return a.IsSubscription || a.TermMonths != nil
}

func (a SkuAttributes) Empty() bool {
	return !a.IsRequiredOption && !a.IsSubscription && a.TermMonths == nil && len(a.Extra) == 0
}

// Text joins the non-reserved attributes into a stable "key: value" list
// for display, sorted by key.
func (a SkuAttributes) Text() string {
	if len(a.Extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a.Extra))
	for k := range a.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, a.Extra[k]))
	}
	return strings.Join(parts, "; ")
}

func (a SkuAttributes) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Extra)+3)
	for k, v := range a.Extra {
		m[k] = v
	}
	if a.IsRequiredOption {
		m[attrRequiredOption] = true
	}
	if a.IsSubscription {
		m[attrSubscription] = true
	}
	if a.TermMonths != nil {
		m[attrTermMonths] = *a.TermMonths
	}
	return json.Marshal(m)
}

func (a *SkuAttributes) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*a = SkuAttributes{}
	for k, v := range m {
		switch k {
		case attrRequiredOption:
			a.IsRequiredOption = truthy(v)
		case attrSubscription:
			a.IsSubscription = truthy(v)
		case attrTermMonths:
			if n, ok := asInt(v); ok && n != 0 {
				a.TermMonths = &n
			}
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[k] = v
		}
	}
	return nil
}

func (a SkuAttributes) Value() (driver.Value, error) {
	if a.Empty() {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *SkuAttributes) Scan(src any) error {
	if src == nil {
		*a = SkuAttributes{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("sku attributes: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*a = SkuAttributes{}
		return nil
	}
	return a.UnmarshalJSON(raw)
}

func (SkuAttributes) GormDataType() string { return "text" }

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	default:
		return false
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}
