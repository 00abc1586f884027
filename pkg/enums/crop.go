package enums

// CropStatus tracks a crop from planting to sell-out.
type CropStatus string

const (
	CropStatusGrowing   CropStatus = "growing"
	CropStatusHarvested CropStatus = "harvested"
	CropStatusListed    CropStatus = "listed"
	CropStatusSold      CropStatus = "sold"
)

var validCropStatuses = []CropStatus{
	CropStatusGrowing,
	CropStatusHarvested,
	CropStatusListed,
	CropStatusSold,
}

// IsValid reports whether the value is a known CropStatus.
func (c CropStatus) IsValid() bool {
	for _, candidate := range validCropStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}
