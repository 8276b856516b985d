package types

import "fmt"

// Coordinates is a WGS84 position used by the climate connectors.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f_%.4f", c.Latitude, c.Longitude)
}

func (c Coordinates) IsValid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
