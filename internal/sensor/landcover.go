package sensor

// Copernicus 100m discrete-classification codes and the partition
// classes they map onto. Codes absent from the table map to class 0
// (not land). Native-legend tiles already carry partition classes and
// skip the remap.
var (
	copernicusCodes = []float64{
		0, 20, 30, 40, 50, 60, 70, 80, 90, 100,
		111, 112, 113, 114, 115, 116,
		121, 122, 123, 124, 125, 126,
		200,
	}
	partitionClasses = []float64{
		0, 8, 10, 15, 17, 16, 19, 18, 14, 13,
		1, 3, 1, 5, 6, 6,
		2, 4, 2, 5, 6, 6,
		18,
	}
)

// LandCoverVersions lists the supported land cover map versions.
var LandCoverVersions = []int{2015, 2020}

// DefaultLandCoverVersion is the current land cover map version.
const DefaultLandCoverVersion = 2020

// CopernicusRemap returns the foreign-to-partition code table as
// copies safe to hand to raster remapping.
func CopernicusRemap() (from, to []float64) {
	from = append([]float64(nil), copernicusCodes...)
	to = append([]float64(nil), partitionClasses...)
	return from, to
}

// ValidLandCoverVersion reports whether the version is supported.
func ValidLandCoverVersion(version int) bool {
	for _, v := range LandCoverVersions {
		if v == version {
			return true
		}
	}
	return false
}
