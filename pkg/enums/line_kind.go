package enums

import "fmt"

// LineKind identifies what an order or cart line references.
type LineKind string

const (
	LineKindProduct     LineKind = "product"
	LineKindCropListing LineKind = "crop_listing"
	LineKindEquipment   LineKind = "equipment"
)

// String implements fmt.Stringer.
func (k LineKind) String() string {
	return string(k)
}

// OrderType maps the referenced entity kind onto the order type.
func (k LineKind) OrderType() OrderType {
	if k == LineKindCropListing {
		return OrderTypeCrop
	}
	return OrderTypeProduct
}

// ParseLineKind converts raw input into a LineKind.
func ParseLineKind(value string) (LineKind, error) {
	switch LineKind(value) {
	case LineKindProduct, LineKindCropListing, LineKindEquipment:
		return LineKind(value), nil
	}
	return "", fmt.Errorf("invalid line kind %q", value)
}
