package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeLogo         AssetType = "logo"
	AssetTypeProductImage AssetType = "product_image"
	AssetTypeBrandImage   AssetType = "brand_image"
)

const (
	MinBrandImages = 3
	MaxBrandImages = 5
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeLogo, AssetTypeProductImage, AssetTypeBrandImage:
		return true
	}
	return false
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	BrandName string    `json:"brand_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type UserAsset struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	AssetType   AssetType `json:"asset_type"`
	StoragePath string    `json:"storage_path"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionAssets groups a session's uploads by role. For logo and product
// image the most recent upload wins when assets are in upload order.
type SessionAssets struct {
	Logo         *UserAsset
	ProductImage *UserAsset
	BrandImages  []UserAsset
}

func GroupAssets(assets []UserAsset) SessionAssets {
	var grouped SessionAssets
	for i := range assets {
		a := assets[i]
		switch a.AssetType {
		case AssetTypeLogo:
			grouped.Logo = &a
		case AssetTypeProductImage:
			grouped.ProductImage = &a
		case AssetTypeBrandImage:
			grouped.BrandImages = append(grouped.BrandImages, a)
		}
	}
	return grouped
}
