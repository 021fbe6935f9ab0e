// Package catalog owns the read/write access to Account, Pricebook and Sku
// records. These are plain table-backed entities; the only invariants are
// uniqueness rules, the single-default-pricebook rule, and referential
// deletion guards toward the quote aggregate.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/db"
	"github.com/quoteforge/quoting/internal/models"
	"github.com/quoteforge/quoting/internal/services"
)

type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb, log: logrus.WithField("component", "catalog")}
}

// ---- Accounts ----

type AccountInput struct {
	Name            string         `json:"name"`
	Domain          string         `json:"domain"`
	ExternalCRMIDs  models.JSONMap `json:"external_crm_ids"`
	ConfidenceScore *float64       `json:"confidence_score"`
}

func (in AccountInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return services.NewValidationError("name", "account name is required")
	}
	if in.ConfidenceScore != nil && (*in.ConfidenceScore < 0 || *in.ConfidenceScore > 1) {
		return services.NewValidationError("confidence_score", "must be in [0, 1]")
	}
	return nil
}

func (s *Store) CreateAccount(in AccountInput) (*models.Account, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	var count int64
	if err := s.db.Model(&models.Account{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
		return nil, services.NewPersistenceError("read", "account", err)
	}
	if count > 0 {
		return nil, services.NewConflictError("account", fmt.Sprintf("account %q already exists", name))
	}
	acct := models.Account{
		Name:            name,
		Domain:          strings.TrimSpace(in.Domain),
		ExternalCRMIDs:  in.ExternalCRMIDs,
		ConfidenceScore: in.ConfidenceScore,
	}
	if err := s.db.Create(&acct).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return nil, services.NewConflictError("account", fmt.Sprintf("account %q already exists", name))
		}
		return nil, services.NewPersistenceError("create", "account", err)
	}
	return &acct, nil
}

func (s *Store) GetAccount(id uint) (*models.Account, error) {
	if id == 0 {
		return nil, services.NewValidationError("account_id", "valid account id is required")
	}
	var acct models.Account
	err := s.db.First(&acct, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.NewNotFoundError("account", id)
	}
	if err != nil {
		return nil, services.NewPersistenceError("read", "account", err)
	}
	return &acct, nil
}

// SearchAccounts matches name or domain, case-insensitively.
func (s *Store) SearchAccounts(query string) ([]models.Account, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + strings.ToLower(query) + "%"
	var accounts []models.Account
	err := s.db.Where("LOWER(name) LIKE ? OR LOWER(domain) LIKE ?", like, like).
		Order("name").Find(&accounts).Error
	if err != nil {
		return nil, services.NewPersistenceError("list", "accounts", err)
	}
	return accounts, nil
}

func (s *Store) ListAccounts(offset, limit int) ([]models.Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var accounts []models.Account
	if err := s.db.Order("name").Offset(offset).Limit(limit).Find(&accounts).Error; err != nil {
		return nil, services.NewPersistenceError("list", "accounts", err)
	}
	return accounts, nil
}

func (s *Store) UpdateAccount(id uint, in AccountInput) (*models.Account, error) {
	acct, err := s.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	var count int64
	if err := s.db.Model(&models.Account{}).
		Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).Count(&count).Error; err != nil {
		return nil, services.NewPersistenceError("read", "account", err)
	}
	if count > 0 {
		return nil, services.NewConflictError("account", fmt.Sprintf("account %q already exists", name))
	}
	acct.Name = name
	acct.Domain = strings.TrimSpace(in.Domain)
	acct.ExternalCRMIDs = in.ExternalCRMIDs
	acct.ConfidenceScore = in.ConfidenceScore
	if err := s.db.Save(acct).Error; err != nil {
		return nil, services.NewPersistenceError("update", "account", err)
	}
	return acct, nil
}

// DeleteAccount refuses while quotes reference the account: accounts are
// immutable once quoted against.
func (s *Store) DeleteAccount(id uint) error {
	if _, err := s.GetAccount(id); err != nil {
		return err
	}
	var quotes int64
	if err := s.db.Model(&models.Quote{}).Where("account_id = ?", id).Count(&quotes).Error; err != nil {
		return services.NewPersistenceError("read", "quotes", err)
	}
	if quotes > 0 {
		return services.NewConflictError("account", "cannot delete account with existing quotes")
	}
	if err := s.db.Delete(&models.Account{}, id).Error; err != nil {
		return services.NewPersistenceError("delete", "account", err)
	}
	return nil
}

// ---- Pricebooks ----

type PricebookInput struct {
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	IsDefault bool   `json:"is_default"`
}

func (in PricebookInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return services.NewValidationError("name", "pricebook name is required")
	}
	if strings.TrimSpace(in.Currency) == "" {
		return services.NewValidationError("currency", "currency is required")
	}
	return nil
}

func (s *Store) CreatePricebook(in PricebookInput) (*models.Pricebook, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	var pb models.Pricebook
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Pricebook{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
			return services.NewPersistenceError("read", "pricebook", err)
		}
		if count > 0 {
			return services.NewConflictError("pricebook", fmt.Sprintf("pricebook %q already exists", name))
		}
		// At most one default at a time: demote the others inside the
		// same transaction that promotes this one.
		if in.IsDefault {
			if err := tx.Model(&models.Pricebook{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return services.NewPersistenceError("update", "pricebook", err)
			}
		}
		pb = models.Pricebook{
			Name:      name,
			Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
			IsDefault: in.IsDefault,
		}
		if err := tx.Create(&pb).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return services.NewConflictError("pricebook", fmt.Sprintf("pricebook %q already exists", name))
			}
			return services.NewPersistenceError("create", "pricebook", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pb, nil
}

func (s *Store) GetPricebook(id uint) (*models.Pricebook, error) {
	if id == 0 {
		return nil, services.NewValidationError("pricebook_id", "valid pricebook id is required")
	}
	var pb models.Pricebook
	err := s.db.First(&pb, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.NewNotFoundError("pricebook", id)
	}
	if err != nil {
		return nil, services.NewPersistenceError("read", "pricebook", err)
	}
	return &pb, nil
}

// GetDefaultPricebook returns nil without error when no default is set.
func (s *Store) GetDefaultPricebook() (*models.Pricebook, error) {
	var pb models.Pricebook
	err := s.db.Where("is_default = ?", true).First(&pb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewPersistenceError("read", "pricebook", err)
	}
	return &pb, nil
}

func (s *Store) ListPricebooks(offset, limit int) ([]models.Pricebook, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var pbs []models.Pricebook
	err := s.db.Order("is_default DESC, name").Offset(offset).Limit(limit).Find(&pbs).Error
	if err != nil {
		return nil, services.NewPersistenceError("list", "pricebooks", err)
	}
	return pbs, nil
}

func (s *Store) UpdatePricebook(id uint, in PricebookInput) (*models.Pricebook, error) {
	pb, err := s.GetPricebook(id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Pricebook{}).
			Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).Count(&count).Error; err != nil {
			return services.NewPersistenceError("read", "pricebook", err)
		}
		if count > 0 {
			return services.NewConflictError("pricebook", fmt.Sprintf("pricebook %q already exists", name))
		}
		if in.IsDefault && !pb.IsDefault {
			if err := tx.Model(&models.Pricebook{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return services.NewPersistenceError("update", "pricebook", err)
			}
		}
		pb.Name = name
		pb.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
		pb.IsDefault = in.IsDefault
		if err := tx.Save(pb).Error; err != nil {
			return services.NewPersistenceError("update", "pricebook", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pb, nil
}

func (s *Store) DeletePricebook(id uint) error {
	if _, err := s.GetPricebook(id); err != nil {
		return err
	}
	var skus, quotes int64
	if err := s.db.Model(&models.Sku{}).Where("pricebook_id = ?", id).Count(&skus).Error; err != nil {
		return services.NewPersistenceError("read", "skus", err)
	}
	if err := s.db.Model(&models.Quote{}).Where("pricebook_id = ?", id).Count(&quotes).Error; err != nil {
		return services.NewPersistenceError("read", "quotes", err)
	}
	if skus > 0 || quotes > 0 {
		return services.NewConflictError("pricebook", "cannot delete pricebook with existing SKUs or quotes")
	}
	if err := s.db.Delete(&models.Pricebook{}, id).Error; err != nil {
		return services.NewPersistenceError("delete", "pricebook", err)
	}
	return nil
}

// ---- SKUs ----

type SkuInput struct {
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	PricebookID uint                 `json:"pricebook_id"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	ParentSkuID *uint                `json:"parent_sku_id"`
	Attributes  models.SkuAttributes `json:"attributes"`
}

func (in SkuInput) validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return services.NewValidationError("code", "sku code is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return services.NewValidationError("name", "sku name is required")
	}
	if in.PricebookID == 0 {
		return services.NewValidationError("pricebook_id", "valid pricebook id is required")
	}
	if in.UnitPrice.IsNegative() {
		return services.NewValidationError("unit_price", "unit price must be non-negative")
	}
	return nil
}

// checkSkuRefs validates the pricebook, the per-pricebook code uniqueness
// and the parent SKU. Parent assignment only happens at create/update and
// the parent must pre-exist, which keeps the bundle tree acyclic without a
// graph walk; self-parenting is the one case rejected explicitly.
func (s *Store) checkSkuRefs(in SkuInput, excludeID uint) error {
	if _, err := s.GetPricebook(in.PricebookID); err != nil {
		if _, nf := services.IsNotFoundError(err); nf {
			return services.NewValidationError("pricebook_id", fmt.Sprintf("pricebook %d does not exist", in.PricebookID))
		}
		return err
	}
	code := strings.TrimSpace(in.Code)
	q := s.db.Model(&models.Sku{}).
		Where("LOWER(code) = LOWER(?) AND pricebook_id = ?", code, in.PricebookID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return services.NewPersistenceError("read", "sku", err)
	}
	if count > 0 {
		return services.NewConflictError("sku", fmt.Sprintf("sku code %q already exists in pricebook %d", code, in.PricebookID))
	}
	if in.ParentSkuID != nil {
		if excludeID != 0 && *in.ParentSkuID == excludeID {
			return services.NewValidationError("parent_sku_id", "sku cannot be its own parent")
		}
		var parent models.Sku
		if err := s.db.First(&parent, *in.ParentSkuID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.NewValidationError("parent_sku_id", fmt.Sprintf("parent sku %d does not exist", *in.ParentSkuID))
			}
			return services.NewPersistenceError("read", "sku", err)
		}
	}
	return nil
}

func (s *Store) CreateSku(in SkuInput) (*models.Sku, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkSkuRefs(in, 0); err != nil {
		return nil, err
	}
	sku := models.Sku{
		Code:        strings.TrimSpace(in.Code),
		Name:        strings.TrimSpace(in.Name),
		PricebookID: in.PricebookID,
		UnitPrice:   in.UnitPrice,
		ParentSkuID: in.ParentSkuID,
		Attributes:  in.Attributes,
	}
	if err := s.db.Create(&sku).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return nil, services.NewConflictError("sku", fmt.Sprintf("sku code %q already exists in pricebook %d", sku.Code, sku.PricebookID))
		}
		return nil, services.NewPersistenceError("create", "sku", err)
	}
	return &sku, nil
}

func (s *Store) GetSku(id uint) (*models.Sku, error) {
	if id == 0 {
		return nil, services.NewValidationError("sku_id", "valid sku id is required")
	}
	var sku models.Sku
	err := s.db.First(&sku, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.NewNotFoundError("sku", id)
	}
	if err != nil {
		return nil, services.NewPersistenceError("read", "sku", err)
	}
	return &sku, nil
}

// SkuFilter narrows ListSkus. ParentSkuID of 0 (non-nil) selects root SKUs.
type SkuFilter struct {
	PricebookID uint
	ParentSkuID *uint
	Name        string
	Code        string
	Offset      int
	Limit       int
}

func (s *Store) ListSkus(f SkuFilter) ([]models.Sku, error) {
	q := s.db.Model(&models.Sku{})
	if f.PricebookID != 0 {
		q = q.Where("pricebook_id = ?", f.PricebookID)
	}
	if f.ParentSkuID != nil {
		if *f.ParentSkuID == 0 {
			q = q.Where("parent_sku_id IS NULL")
		} else {
			q = q.Where("parent_sku_id = ?", *f.ParentSkuID)
		}
	}
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}
	if f.Code != "" {
		q = q.Where("LOWER(code) LIKE ?", "%"+strings.ToLower(f.Code)+"%")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var skus []models.Sku
	if err := q.Order("code").Offset(f.Offset).Limit(limit).Find(&skus).Error; err != nil {
		return nil, services.NewPersistenceError("list", "skus", err)
	}
	return skus, nil
}

// ListSkusByPricebook is the catalog accessor the quote engine consumes.
func (s *Store) ListSkusByPricebook(pricebookID uint) ([]models.Sku, error) {
	return s.ListSkus(SkuFilter{PricebookID: pricebookID})
}

func (s *Store) SearchSkus(query string, pricebookID uint) ([]models.Sku, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + strings.ToLower(query) + "%"
	q := s.db.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	if pricebookID != 0 {
		q = q.Where("pricebook_id = ?", pricebookID)
	}
	var skus []models.Sku
	if err := q.Order("code").Find(&skus).Error; err != nil {
		return nil, services.NewPersistenceError("list", "skus", err)
	}
	return skus, nil
}

func (s *Store) UpdateSku(id uint, in SkuInput) (*models.Sku, error) {
	sku, err := s.GetSku(id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkSkuRefs(in, id); err != nil {
		return nil, err
	}
	sku.Code = strings.TrimSpace(in.Code)
	sku.Name = strings.TrimSpace(in.Name)
	sku.PricebookID = in.PricebookID
	sku.UnitPrice = in.UnitPrice
	sku.ParentSkuID = in.ParentSkuID
	sku.Attributes = in.Attributes
	if err := s.db.Save(sku).Error; err != nil {
		return nil, services.NewPersistenceError("update", "sku", err)
	}
	return sku, nil
}

// DeleteSku refuses while quote lines snapshot the SKU or children hang
// off it in a bundle tree.
func (s *Store) DeleteSku(id uint) error {
	if _, err := s.GetSku(id); err != nil {
		return err
	}
	var lines, children int64
	if err := s.db.Model(&models.QuoteLine{}).Where("sku_id = ?", id).Count(&lines).Error; err != nil {
		return services.NewPersistenceError("read", "quote lines", err)
	}
	if err := s.db.Model(&models.Sku{}).Where("parent_sku_id = ?", id).Count(&children).Error; err != nil {
		return services.NewPersistenceError("read", "skus", err)
	}
	if lines > 0 || children > 0 {
		return services.NewConflictError("sku", "cannot delete sku with existing quote lines or child skus")
	}
	if err := s.db.Delete(&models.Sku{}, id).Error; err != nil {
		return services.NewPersistenceError("delete", "sku", err)
	}
	return nil
}
