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

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Asset is the persisted form of saga.Asset.
type Asset struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string     `gorm:"size:200;not null" json:"name"`
	AssetType      string     `gorm:"column:asset_type;size:100;not null" json:"type"`
	Manufacturer   string     `gorm:"size:200" json:"manufacturer"`
	Location       string     `gorm:"size:200" json:"location"`
	Status         string     `gorm:"size:50;not null;index" json:"status"`
	WarrantyExpiry *time.Time `json:"warranty_expiry,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName pins the table name.
func (Asset) TableName() string {
	return "assets"
}

// BeforeCreate is a GORM hook that assigns an id when the caller did not.
func (a *Asset) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return
}

// FromDomain converts a saga.Asset.
func FromDomain(a *saga.Asset) *Asset {
	return &Asset{
		ID:             a.ID,
		Name:           a.Fields.Name,
		AssetType:      a.Fields.AssetType,
		Manufacturer:   a.Fields.Manufacturer,
		Location:       a.Fields.Location,
		Status:         a.Fields.Status,
		WarrantyExpiry: a.Fields.WarrantyExpiry,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// ToDomain converts back to a saga.Asset.
func (a *Asset) ToDomain() *saga.Asset {
	return &saga.Asset{
		ID: a.ID,
		Fields: saga.AssetFields{
			Name:           a.Name,
			AssetType:      a.AssetType,
			Manufacturer:   a.Manufacturer,
			Location:       a.Location,
			Status:         a.Status,
			WarrantyExpiry: a.WarrantyExpiry,
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Columns maps update-mask field identifiers to column values taken from fields.
// Unknown identifiers are skipped.
func Columns(fields saga.AssetFields, mask []string) map[string]interface{} {
	cols := make(map[string]interface{}, len(mask))
	for _, name := range mask {
		switch name {
		case saga.FieldName:
			cols["name"] = fields.Name
		case saga.FieldType:
			cols["asset_type"] = fields.AssetType
		case saga.FieldManufacturer:
			cols["manufacturer"] = fields.Manufacturer
		case saga.FieldLocation:
			cols["location"] = fields.Location
		case saga.FieldStatus:
			cols["status"] = fields.Status
		case saga.FieldWarrantyExpiry:
			if fields.WarrantyExpiry == nil {
				cols["warranty_expiry"] = nil
			} else {
				cols["warranty_expiry"] = *fields.WarrantyExpiry
			}
		}
	}
	return cols
}
