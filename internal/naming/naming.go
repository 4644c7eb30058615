// Package naming derives collision-free, human-readable artifact filenames
// and resolves filenames back to the requirement they were captured for.
//
// A filename looks like:
//
//	"North Yard 7312 Overall Compound 2.3_142501"
//
// i.e. "{siteName} {siteID} {requirementName} {sequential}.{sub}_{HHMMSS}".
// The time suffix only guarantees global uniqueness across devices and
// sessions; ordering comes from the (sequential, sub) pair.
package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/sitesync/internal/models"
)

// seqPattern matches a trailing "{seq}.{sub}" pair, optionally followed by
// the "_HHMMSS" uniqueness suffix and/or a file extension.
var seqPattern = regexp.MustCompile(`(?:^|\s)(\d+)\.(\d+)(?:_\d{6})?(?:\.[A-Za-z0-9]+)?$`)

// Sequence is the (sequential, sub) pair embedded in a filename.
type Sequence struct {
	Seq int
	Sub int
}

// ParseSequence extracts the trailing sequence pair from a filename.
func ParseSequence(filename string) (Sequence, bool) {
	m := seqPattern.FindStringSubmatch(filename)
	if m == nil {
		return Sequence{}, false
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return Sequence{}, false
	}
	sub, err := strconv.Atoi(m[2])
	if err != nil {
		return Sequence{}, false
	}
	return Sequence{Seq: seq, Sub: sub}, true
}

// NextSequence computes the sequence pair for the next capture given the
// filenames already recorded for a (site, requirement) pair. With no
// parseable names the numbering starts at (1,1); otherwise the pairs are
// ordered lexicographically and the successor of the last one is
// (lastSeq, lastSub+1).
func NextSequence(existing []string) Sequence {
	var pairs []Sequence
	for _, fn := range existing {
		if p, ok := ParseSequence(fn); ok {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) == 0 {
		return Sequence{Seq: 1, Sub: 1}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Seq != pairs[j].Seq {
			return pairs[i].Seq < pairs[j].Seq
		}
		return pairs[i].Sub < pairs[j].Sub
	})
	last := pairs[len(pairs)-1]
	return Sequence{Seq: last.Seq, Sub: last.Sub + 1}
}

// BuildFilename assembles the artifact filename for a capture made at the
// given time.
func BuildFilename(siteName, siteID, requirementName string, s Sequence, at time.Time) string {
	return fmt.Sprintf("%s %s %s %d.%d_%s",
		siteName, siteID, requirementName, s.Seq, s.Sub, at.Format("150405"))
}

// ResolveRequirement maps a remote filename back to a requirement by
// longest-name-first containment of "{name} " followed by a digit. Matching
// longest names first keeps "Overall Compound 1" from being claimed by the
// shorter "Overall Compound". Filename-based resolution is a heuristic
// fallback for listings that carry no explicit requirement id.
func ResolveRequirement(filename string, catalog []models.Requirement) (models.Requirement, bool) {
	ordered := make([]models.Requirement, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Name) > len(ordered[j].Name)
	})

	for _, req := range ordered {
		if req.Name == "" {
			continue
		}
		if containsNameBeforeDigit(filename, req.Name) {
			return req, true
		}
	}
	return models.Requirement{}, false
}

// containsNameBeforeDigit reports whether name occurs in filename followed
// by a space and a digit, checking every occurrence.
func containsNameBeforeDigit(filename, name string) bool {
	marker := name + " "
	for from := 0; ; {
		idx := strings.Index(filename[from:], marker)
		if idx < 0 {
			return false
		}
		next := from + idx + len(marker)
		if next < len(filename) && filename[next] >= '0' && filename[next] <= '9' {
			return true
		}
		from += idx + 1
	}
}

// IsImageFile reports whether a remote listing entry looks like a photo
// artifact eligible for auto-download.
func IsImageFile(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(extOf(name), ".")) {
	case "jpg", "jpeg", "png", "heic", "webp":
		return true
	}
	return false
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}
