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

package saga

import "time"

// Asset field identifiers used in update masks.
const (
	FieldName           = "name"
	FieldType           = "type"
	FieldManufacturer   = "manufacturer"
	FieldLocation       = "location"
	FieldStatus         = "status"
	FieldWarrantyExpiry = "warranty_expiry"
)

// AllAssetFields lists every mutable asset field in a stable order.
var AllAssetFields = []string{
	FieldName,
	FieldType,
	FieldManufacturer,
	FieldLocation,
	FieldStatus,
	FieldWarrantyExpiry,
}

// IsAssetField reports whether name is a known field identifier.
func IsAssetField(name string) bool {
	for _, f := range AllAssetFields {
		if f == name {
			return true
		}
	}
	return false
}

// AssetFields holds the mutable attributes of an asset.
type AssetFields struct {
	Name           string     `json:"name" validate:"required,max=200"`
	AssetType      string     `json:"type" validate:"required,max=100"`
	Manufacturer   string     `json:"manufacturer" validate:"max=200"`
	Location       string     `json:"location" validate:"max=200"`
	Status         string     `json:"status" validate:"required,max=50"`
	WarrantyExpiry *time.Time `json:"warrantyExpiry,omitempty"`
}

// Apply copies the fields named in mask from src into f.
// Unknown names are ignored.
func (f *AssetFields) Apply(src AssetFields, mask []string) {
	for _, name := range mask {
		switch name {
		case FieldName:
			f.Name = src.Name
		case FieldType:
			f.AssetType = src.AssetType
		case FieldManufacturer:
			f.Manufacturer = src.Manufacturer
		case FieldLocation:
			f.Location = src.Location
		case FieldStatus:
			f.Status = src.Status
		case FieldWarrantyExpiry:
			f.WarrantyExpiry = copyTime(src.WarrantyExpiry)
		}
	}
}

// Clone returns a deep copy of f.
func (f AssetFields) Clone() AssetFields {
	f.WarrantyExpiry = copyTime(f.WarrantyExpiry)
	return f
}

// Asset is the domain record mutated by the sagas.
type Asset struct {
	ID        string      `json:"id"`
	Fields    AssetFields `json:"fields"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy of a.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Fields = a.Fields.Clone()
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
