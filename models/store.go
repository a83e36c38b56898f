package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrStoreHasOrders = errors.New("store has orders, clear them first")

type Store struct {
	ID        string    `gorm:"primary_key;size:64" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:20;not null;unique" json:"code"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name     string `json:"name" binding:"required" validate:"required,max=100"`
	Code     string `json:"code" binding:"required" validate:"required,max=20"`
	Phone    string `json:"phone" validate:"max=20"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

// validate input for both create & update. (id = "" for create)
func (input *NewStore) validate(ctx context.Context, id string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if input.Code == "" {
		return errors.New("code is required")
	}
	if err := utils.ValidateUnique[Store](ctx, "", "code", input.Code, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	store := Store{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Code:     input.Code,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: isActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func UpdateStore(ctx context.Context, id string, input *NewStore) (*Store, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	store, err := fetchByID[Store](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":    input.Name,
		"Code":    input.Code,
		"Phone":   input.Phone,
		"Address": input.Address,
	}
	if input.IsActive != nil {
		updates["IsActive"] = input.IsActive
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(store).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.CacheDrop[Store](ctx, id); err != nil {
		return nil, err
	}
	return store, nil
}

func DeleteStore(ctx context.Context, id string) (*Store, error) {
	db := config.GetDB()
	result, err := fetchByID[Store](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if store still holds orders
	count, err := utils.ResourceCountWhere[RemovalOrder](ctx, id, "1 = 1")
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrStoreHasOrders
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ?", id).Delete(&UserStore{}).Error; err != nil {
			return err
		}
		return tx.Delete(result).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.CacheDrop[Store](ctx, id); err != nil {
		return nil, err
	}
	return result, nil
}

func GetStore(ctx context.Context, id string) (*Store, error) {
	return GetResource[Store](ctx, id)
}

// ListStore returns every store when storeIds is nil, else only those ids.
func ListStore(ctx context.Context, name *string, storeIds []string) ([]*Store, error) {
	db := config.GetDB()
	var results []*Store

	dbCtx := db.WithContext(ctx)
	if storeIds != nil {
		if len(storeIds) == 0 {
			return results, nil
		}
		dbCtx = dbCtx.Where("id IN ?", storeIds)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MapStoresByIds loads the given stores keyed by id.
func MapStoresByIds(ctx context.Context, ids []string) (map[string]*Store, error) {
	db := config.GetDB()
	var results []*Store
	if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	resultMap := make(map[string]*Store, len(results))
	for _, s := range results {
		resultMap[s.ID] = s
	}
	return resultMap, nil
}
