// Package zipdb resolves a 5-digit US ZIP code to a (lat, lon) pair via
// binary search over a memory-mapped, sorted fixed-width table. This
// lookup is an external collaborator to the rest of the daemon: the core
// only ever consumes a (lat, lon) pair from it.
package zipdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// recordSize is 5 ASCII zip digits plus two little-endian float32s.
const recordSize = 5 + 4 + 4

// ErrNotFound is returned by Lookup when the zip isn't present in the
// table.
var ErrNotFound = errors.New("zipdb: zip code not found")

// DB is a memory-mapped, read-only view of us_zipcodes.bin. The mapping is
// held open for the lifetime of the DB; Close unmaps it.
type DB struct {
	data  []byte
	count uint32
}

// Open mmaps path read-only and validates the leading count against the
// file's actual size.
func Open(path string) (*DB, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("zipdb: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("zipdb: stat %s: %w", path, err)
	}
	size := int(st.Size)
	if size < 4 {
		return nil, fmt.Errorf("zipdb: %s too small to hold a header", path)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("zipdb: mmap %s: %w", path, err)
	}

	count := binary.LittleEndian.Uint32(data[:4])
	if want := 4 + int(count)*recordSize; want != size {
		unix.Munmap(data)
		return nil, fmt.Errorf("zipdb: %s: header count %d doesn't match file size %d", path, count, size)
	}

	return &DB{data: data, count: count}, nil
}

// Close unmaps the underlying file.
func (db *DB) Close() error {
	if db.data == nil {
		return nil
	}
	err := unix.Munmap(db.data)
	db.data = nil
	return err
}

// Count returns the number of records in the table.
func (db *DB) Count() int { return int(db.count) }

func (db *DB) record(i int) []byte {
	off := 4 + i*recordSize
	return db.data[off : off+recordSize]
}

// Lookup binary-searches the table for zip (a 5-character ASCII string,
// zero-padded) and returns its stored latitude/longitude.
func (db *DB) Lookup(zip string) (lat, lon float32, err error) {
	if len(zip) != 5 {
		return 0, 0, fmt.Errorf("zipdb: zip code must be 5 digits, got %q", zip)
	}
	key := []byte(zip)

	lo, hi := 0, int(db.count)
	for lo < hi {
		mid := (lo + hi) / 2
		rec := db.record(mid)
		switch bytes.Compare(rec[:5], key) {
		case 0:
			bits1 := binary.LittleEndian.Uint32(rec[5:9])
			bits2 := binary.LittleEndian.Uint32(rec[9:13])
			return math.Float32frombits(bits1), math.Float32frombits(bits2), nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, 0, ErrNotFound
}
