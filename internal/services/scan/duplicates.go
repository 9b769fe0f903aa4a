// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"strings"

	"github.com/VT-TyR/drivemind/internal/models"
)

// Detector groups indexed entries into duplicate sets. Grouping is a single
// O(n) pass: exact byte size first, then checksum when present, else a
// normalized form of the name. Files with different sizes are never
// duplicates of each other under this design.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() Detector {
	return Detector{}
}

// Group returns all duplicate sets of two or more entries. Empty files are
// excluded since they are not meaningful storage-reclamation candidates.
func (Detector) Group(entries []*models.FileIndexEntry) [][]*models.FileIndexEntry {
	bySize := make(map[int64][]*models.FileIndexEntry)
	var sizes []int64

	for _, entry := range entries {
		if entry == nil || entry.Size == 0 {
			continue
		}
		if _, seen := bySize[entry.Size]; !seen {
			sizes = append(sizes, entry.Size)
		}
		bySize[entry.Size] = append(bySize[entry.Size], entry)
	}

	var groups [][]*models.FileIndexEntry
	for _, size := range sizes {
		bucket := bySize[size]
		if len(bucket) < 2 {
			continue
		}

		byKey := make(map[string][]*models.FileIndexEntry)
		var keys []string
		for _, entry := range bucket {
			key := subGroupKey(entry)
			if _, seen := byKey[key]; !seen {
				keys = append(keys, key)
			}
			byKey[key] = append(byKey[key], entry)
		}

		for _, key := range keys {
			if group := byKey[key]; len(group) >= 2 {
				groups = append(groups, group)
			}
		}
	}

	return groups
}

func subGroupKey(entry *models.FileIndexEntry) string {
	if entry.Checksum != "" {
		return "md5:" + entry.Checksum
	}
	return "name:" + normalizeName(entry.Name)
}

// normalizeName lowercases the name and strips everything but letters and
// digits, so "Report (1).pdf" and "report 1.PDF" collide.
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QualityScore summarizes how duplicate-heavy a collection is on a [20,100]
// scale. The floor of 20 keeps the score non-degenerate under heavy
// duplication; an empty collection trivially scores 100.
func QualityScore(duplicateGroups, totalFiles int) int {
	if totalFiles <= 0 {
		return 100
	}

	penalty := int(float64(duplicateGroups)/float64(totalFiles)*100 + 0.5)
	score := 100 - penalty
	if score < 20 {
		score = 20
	}
	return score
}

// RecommendActions derives the small advisory set attached to completed
// results.
func RecommendActions(duplicateGroups, totalFiles int) []string {
	var actions []string
	if duplicateGroups > 0 {
		actions = append(actions, "review_duplicates")
	}
	if totalFiles > 10000 {
		actions = append(actions, "organize_folders")
	}
	if len(actions) == 0 {
		actions = append(actions, "no_action_needed")
	}
	return actions
}
