package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FavouriteKey identifies a favourite by channel name and category.
// Two channels sharing both fields are the same favourite even when their
// URLs or tvg-ids differ.
type FavouriteKey struct {
	Name     string
	Category string
}

// MarshalJSON encodes the key as a ["name", "category"] pair.
func (k FavouriteKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{k.Name, k.Category})
}

// UnmarshalJSON decodes a ["name", "category"] pair.
func (k *FavouriteKey) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("favourite key: want 2 elements, got %d", len(pair))
	}
	k.Name, k.Category = pair[0], pair[1]
	return nil
}

// SortKeys orders keys by category, then name, so serialized key sets are stable.
func SortKeys(keys []FavouriteKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Name < keys[j].Name
	})
}

// EncodeKeys serializes keys as a JSON list of pairs, sorted.
func EncodeKeys(keys []FavouriteKey) (string, error) {
	sorted := make([]FavouriteKey, len(keys))
	copy(sorted, keys)
	SortKeys(sorted)
	data, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeKeys parses a JSON list of pairs. Duplicate pairs collapse into one.
// An empty payload decodes to an empty set.
func DecodeKeys(payload string) ([]FavouriteKey, error) {
	if payload == "" {
		return nil, nil
	}
	var raw []FavouriteKey
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	seen := make(map[FavouriteKey]struct{}, len(raw))
	keys := make([]FavouriteKey, 0, len(raw))
	for _, k := range raw {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}
