package crawler

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

// Dedupe collapses records by identity, preserving first-seen order.
// Identity is the portal rawId; records without one fall back to a
// structural hash over every field they carry, in stable key order.
func Dedupe(records []domain.Record) []domain.Record {
	if len(records) == 0 {
		return records
	}

	seen := make(map[string]struct{}, len(records))
	unique := make([]domain.Record, 0, len(records))

	for _, rec := range records {
		id := rec.RawID()
		if id == "" {
			id = structuralHash(rec)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, rec)
	}
	return unique
}

// structuralHash digests every field the record carries, in sorted key
// order, so equal records hash equally regardless of map iteration order.
func structuralHash(rec domain.Record) string {
	keys := make([]string, 0, len(rec.Values))
	for key := range rec.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, key := range keys {
		if v := rec.Values[key]; v != nil {
			fmt.Fprintf(h, "%s=%v;", key, v)
		}
	}
	return fmt.Sprintf("fnv:%x", h.Sum64())
}
