package services

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/models"
)

// DocumentService derives the render-ready QuoteDoc from a persisted quote
// plus a snapshot of the catalog entities it references.
type DocumentService struct {
	db      *gorm.DB
	quotes  *QuoteService
	pricing *PricingService
	log     *logrus.Entry
}

func NewDocumentService(gdb *gorm.DB, quotes *QuoteService, pricing *PricingService) *DocumentService {
	return &DocumentService{
		db:      gdb,
		quotes:  quotes,
		pricing: pricing,
		log:     logrus.WithField("component", "documents"),
	}
}

// Derive builds the QuoteDoc for quoteID. A missing account or pricebook
// is fatal (IncompleteQuoteError); a missing SKU degrades to synthesized
// placeholders so quotes referencing since-deleted SKUs still render.
func (s *DocumentService) Derive(quoteID uint) (*models.QuoteDoc, error) {
	quote, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := s.db.First(&account, quote.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &IncompleteQuoteError{QuoteID: quoteID, Missing: "account"}
		}
		return nil, NewPersistenceError("read", "account", err)
	}
	var pricebook models.Pricebook
	if err := s.db.First(&pricebook, quote.PricebookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &IncompleteQuoteError{QuoteID: quoteID, Missing: "pricebook"}
		}
		return nil, NewPersistenceError("read", "pricebook", err)
	}

	skuMap, err := s.skuSnapshot(quote.Lines)
	if err != nil {
		return nil, err
	}
	return s.build(quote, &account, &pricebook, skuMap), nil
}

// skuSnapshot loads the SKUs referenced by the quote's lines, keyed by id.
func (s *DocumentService) skuSnapshot(lines []models.QuoteLine) (map[uint]*models.Sku, error) {
	snapshot := make(map[uint]*models.Sku, len(lines))
	if len(lines) == 0 {
		return snapshot, nil
	}
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.SkuID)
	}
	var skus []models.Sku
	if err := s.db.Where("id IN ?", ids).Find(&skus).Error; err != nil {
		return nil, NewPersistenceError("read", "skus", err)
	}
	for i := range skus {
		snapshot[skus[i].ID] = &skus[i]
	}
	return snapshot, nil
}

func (s *DocumentService) build(quote *models.Quote, account *models.Account, pricebook *models.Pricebook, skuMap map[uint]*models.Sku) *models.QuoteDoc {
	// Parent->children adjacency over the SKUs appearing on this quote.
	// Classification is scoped to the quote, not the full catalog: a SKU
	// is a bundle parent here only if one of its children is also a line.
	children := make(map[uint][]uint)
	for _, line := range quote.Lines {
		if sku := skuMap[line.SkuID]; sku != nil && sku.ParentSkuID != nil {
			children[*sku.ParentSkuID] = append(children[*sku.ParentSkuID], sku.ID)
		}
	}

	billName := account.Name
	if billName == "" {
		billName = "Customer Name"
	}
	const addressPlaceholder = "Address not provided"

	lineDocs := make([]models.LineDoc, 0, len(quote.Lines))
	priced := make([]PricedLine, 0, len(quote.Lines))
	for idx, line := range quote.Lines {
		sku := skuMap[line.SkuID]

		code := strconv.FormatUint(uint64(line.SkuID), 10)
		name := "SKU " + code
		var attrs models.SkuAttributes
		indent := 0
		if sku != nil {
			if sku.Code != "" {
				code = sku.Code
			}
			if sku.Name != "" {
				name = sku.Name
			}
			attrs = sku.Attributes
			if sku.ParentSkuID != nil {
				indent = 1
			}
		}

		unit := s.pricing.ResolveUnitPrice(line.UnitPrice, sku)
		total := s.pricing.LineTotal(unit, line.Qty, line.DiscountPct)
		priced = append(priced, PricedLine{UnitPrice: unit, Qty: line.Qty, DiscountPct: line.DiscountPct})

		lineDocs = append(lineDocs, models.LineDoc{
			Index:            idx + 1,
			ProductName:      name,
			SkuCode:          code,
			Qty:              line.Qty,
			UnitPrice:        unit.Round(2),
			DiscountPct:      line.DiscountPct,
			LineTotal:        total.Round(2),
			IndentLevel:      indent,
			IsBundleParent:   sku != nil && len(children[sku.ID]) > 0,
			IsRequiredOption: attrs.IsRequiredOption,
			IsSubscription:   attrs.Subscription(),
			TermMonths:       attrs.TermMonths,
			AttributesText:   attrs.Text(),
		})
	}

	totals := s.pricing.Aggregate(priced)
	tax := decimal.Zero // placeholder: tax computation is out of scope
	return &models.QuoteDoc{
		QuoteID:          quote.ID,
		QuoteDate:        quote.CreatedAt,
		PricebookName:    pricebook.Name,
		Currency:         pricebook.Currency,
		BillToName:       billName,
		BillToAddress:    addressPlaceholder,
		ShipToName:       billName,
		ShipToAddress:    addressPlaceholder,
		Lines:            lineDocs,
		Subtotal:         totals.Subtotal,
		TotalDiscountAbs: totals.DiscountAbs,
		TotalDiscountPct: totals.DiscountPct,
		Tax:              tax,
		GrandTotal:       totals.Subtotal.Add(tax),
	}
}
