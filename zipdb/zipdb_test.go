package zipdb

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTestDB(t *testing.T, entries map[string][2]float32) string {
	t.Helper()

	zips := make([]string, 0, len(entries))
	for z := range entries {
		zips = append(zips, z)
	}
	sort.Strings(zips)

	buf := make([]byte, 4+len(zips)*recordSize)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(zips)))
	for i, z := range zips {
		off := 4 + i*recordSize
		copy(buf[off:off+5], z)
		latLon := entries[z]
		binary.LittleEndian.PutUint32(buf[off+5:off+9], math.Float32bits(latLon[0]))
		binary.LittleEndian.PutUint32(buf[off+9:off+13], math.Float32bits(latLon[1]))
	}

	path := filepath.Join(t.TempDir(), "us_zipcodes.bin")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write test db: %v", err)
	}
	return path
}

func TestLookupExactMatch(t *testing.T) {
	path := writeTestDB(t, map[string][2]float32{
		"60601": {41.8858, -87.6229},
		"10001": {40.7506, -73.9972},
		"94103": {37.7725, -122.4147},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", db.Count())
	}

	lat, lon, err := db.Lookup("60601")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if lat != 41.8858 || lon != -87.6229 {
		t.Errorf("lookup 60601 = (%v, %v), want (41.8858, -87.6229)", lat, lon)
	}
}

func TestLookupNotFound(t *testing.T) {
	path := writeTestDB(t, map[string][2]float32{
		"60601": {41.8858, -87.6229},
	})
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, _, err := db.Lookup("99999"); err != ErrNotFound {
		t.Errorf("Lookup(99999) error = %v, want ErrNotFound", err)
	}
}

func TestLookupInvalidZipLength(t *testing.T) {
	path := writeTestDB(t, map[string][2]float32{"60601": {41.8858, -87.6229}})
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, _, err := db.Lookup("123"); err == nil {
		t.Error("expected error for short zip code")
	}
}
