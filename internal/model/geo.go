package model

// AddressNotFound is the address used when reverse geocoding yields nothing.
const AddressNotFound = "Address not found"

// GeoInfo is the burn-in text recovered from the bottom strip of a frame.
// Every field is optional; nil means the value was not recognised.
type GeoInfo struct {
	Date      *string  `json:"date" bson:"date"`
	Time      *string  `json:"time" bson:"time"`
	Latitude  *float64 `json:"latitude" bson:"latitude"`
	Longitude *float64 `json:"longitude" bson:"longitude"`
	Address   *string  `json:"address" bson:"address"`
}

// SameLocation reports whether both coordinates match exactly, treating
// two absent values as equal.
func (g GeoInfo) SameLocation(other GeoInfo) bool {
	return sameFloat(g.Latitude, other.Latitude) && sameFloat(g.Longitude, other.Longitude)
}

// HasCoordinates reports whether both latitude and longitude were parsed.
func (g GeoInfo) HasCoordinates() bool {
	return g.Latitude != nil && g.Longitude != nil
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
