// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package repository is the gorm-backed asset store mutated by the sagas.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/innovationmech/assetsaga/internal/assetsaga/model"
	"github.com/innovationmech/assetsaga/pkg/saga"
)

// AssetRepository implements saga.AssetStore on top of gorm.
type AssetRepository struct {
	db *gorm.DB
}

var _ saga.AssetStore = (*AssetRepository)(nil)

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Migrate creates or updates the assets table.
func (r *AssetRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&model.Asset{})
}

// Create inserts a new asset. A pre-assigned asset.ID is kept.
func (r *AssetRepository) Create(ctx context.Context, asset *saga.Asset) (string, error) {
	if asset == nil {
		return "", errors.New("asset is nil")
	}
	m := model.FromDomain(asset)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return "", translate(err, m.ID)
	}
	return m.ID, nil
}

// Get returns the asset with id.
func (r *AssetRepository) Get(ctx context.Context, id string) (*saga.Asset, error) {
	var m model.Asset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, id)
	}
	return m.ToDomain(), nil
}

// Update writes exactly the masked columns. An empty mask writes every field.
func (r *AssetRepository) Update(ctx context.Context, id string, fields saga.AssetFields, mask []string) error {
	if len(mask) == 0 {
		mask = saga.AllAssetFields
	}
	cols := model.Columns(fields, mask)
	if len(cols) == 0 {
		return fmt.Errorf("no known fields in mask %v", mask)
	}

	result := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return translate(result.Error, id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", saga.ErrAssetNotFound, id)
	}
	return nil
}

// Delete removes the asset with id.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Asset{})
	if result.Error != nil {
		return translate(result.Error, id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", saga.ErrAssetNotFound, id)
	}
	return nil
}

// Restore re-inserts a deleted asset with its original id and timestamps.
func (r *AssetRepository) Restore(ctx context.Context, asset *saga.Asset) error {
	if asset == nil || asset.ID == "" {
		return errors.New("restore requires an asset with an id")
	}
	if err := r.db.WithContext(ctx).Create(model.FromDomain(asset)).Error; err != nil {
		return translate(err, asset.ID)
	}
	return nil
}

func translate(err error, id string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", saga.ErrAssetNotFound, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", saga.ErrAssetExists, id)
	default:
		return err
	}
}
