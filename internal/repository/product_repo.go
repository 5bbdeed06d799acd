package repository

import (
	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll() ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindBySKU(sku string) (*model.Product, error)
	Save(product *model.Product) error
	Delete(id uuid.UUID) error

	// UpdateQuantity performs the guarded stock write: it only succeeds
	// when the row still holds expected. Returns false without error when
	// another reconciliation got there first.
	UpdateQuantity(id uuid.UUID, expected, next int, updatedBy *string) (bool, error)
}

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *productRepo) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Order("created_at DESC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.First(&product, "sku = ?", sku).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &product, nil
}

func (r *productRepo) Save(product *model.Product) error {
	return r.db.Save(product).Error
}

func (r *productRepo) Delete(id uuid.UUID) error {
	res := r.db.Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) UpdateQuantity(id uuid.UUID, expected, next int, updatedBy *string) (bool, error) {
	updates := map[string]interface{}{"quantity": next}
	if updatedBy != nil {
		updates["updated_by_user_id"] = *updatedBy
	}
	res := r.db.Model(&model.Product{}).
		Where("id = ? AND quantity = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
