package catalog

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// Ref is a tagged reference to the one catalog entity a line points at.
type Ref struct {
	Kind enums.LineKind
	ID   uuid.UUID
}

// ProductRef references a catalog product.
func ProductRef(id uuid.UUID) Ref {
	return Ref{Kind: enums.LineKindProduct, ID: id}
}

// CropListingRef references a crop listing.
func CropListingRef(id uuid.UUID) Ref {
	return Ref{Kind: enums.LineKindCropListing, ID: id}
}

// RefFromIDs builds a Ref from the nullable columns of a cart line. It fails
// when neither or both ids are set.
func RefFromIDs(productID, cropListingID *uuid.UUID) (Ref, error) {
	hasProduct := productID != nil && *productID != uuid.Nil
	hasListing := cropListingID != nil && *cropListingID != uuid.Nil
	switch {
	case hasProduct && hasListing:
		return Ref{}, fmt.Errorf("line references both product %s and crop listing %s", *productID, *cropListingID)
	case hasProduct:
		return ProductRef(*productID), nil
	case hasListing:
		return CropListingRef(*cropListingID), nil
	default:
		return Ref{}, fmt.Errorf("line references no catalog entity")
	}
}

// IsZero reports whether the ref points at nothing.
func (r Ref) IsZero() bool {
	return r.ID == uuid.Nil
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
