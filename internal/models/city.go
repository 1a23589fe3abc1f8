package models

import (
	"strconv"
	"strings"
	"time"
)

// Coord is a city's geographic position.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CityRecord is one row of the static city list served as cities.json.
type CityRecord struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Coord   Coord  `json:"coord"`
}

// NameKey returns the weather cache key for the city's name and country.
func (c CityRecord) NameKey() string {
	return CityNameKey(c.Name, c.Country)
}

// CityNameKey builds the lowercase "name,country" weather cache key.
func CityNameKey(name, country string) string {
	return strings.ToLower(name + "," + country)
}

// CityIDKey builds the weather cache key for a numeric city id.
func CityIDKey(id int) string {
	return strconv.Itoa(id)
}

// WeatherEntry is a cached upstream weather payload.
// Payload is the raw JSON document returned to clients.
type WeatherEntry struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetchedAt"`
}
