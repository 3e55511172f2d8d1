package idcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var errEmptyFile = errors.New("empty file")

// Decode parses a cache file: a flat JSON object mapping module paths to
// non-negative integer ids. Fractions, negative numbers, values that do not
// fit an int and ids shared by two paths are rejected.
func Decode(data []byte) (map[string]int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyFile
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("cache root must be an object")
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after cache object")
	}

	entries := make(map[string]int, len(raw))
	owners := make(map[int]string, len(raw))
	for path, num := range raw {
		v, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id for %q is not an integer: %s", path, num)
		}
		if v < 0 || v > math.MaxInt32 {
			return nil, fmt.Errorf("id for %q out of range: %d", path, v)
		}
		id := int(v)
		if owner, dup := owners[id]; dup {
			return nil, fmt.Errorf("id %d shared by %q and %q", id, owner, path)
		}
		owners[id] = path
		entries[path] = id
	}
	return entries, nil
}

// Encode renders entries in the on-disk format. Keys are sorted, so the same
// mapping always produces the same bytes.
func Encode(entries map[string]int) ([]byte, error) {
	if entries == nil {
		entries = map[string]int{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}
