package store

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Location is a latitude/longitude pair, Valid only once both have been
// read or set.
type Location struct {
	Lat, Lon float64
	Valid    bool
}

// LoadLocation reads the two-key [location] section of config.ini. A
// missing file, missing section, or a key that fails to parse simply
// yields Valid=false rather than an error; there is no other content in
// this file worth failing loudly over.
func LoadLocation(path string) Location {
	f, err := os.Open(path)
	if err != nil {
		return Location{}
	}
	defer f.Close()

	var loc Location
	var hasLat, hasLon bool
	inLocation := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inLocation = line == "[location]"
			continue
		}
		if !inLocation {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "latitude":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				loc.Lat, hasLat = v, true
			}
		case "longitude":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				loc.Lon, hasLon = v, true
			}
		}
	}

	loc.Valid = hasLat && hasLon
	return loc
}

// SaveLocation writes config.ini with a single [location] section.
func SaveLocation(path string, lat, lon float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: save location: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[location]\nlatitude = %.6f\nlongitude = %.6f\n", lat, lon)
	return err
}
