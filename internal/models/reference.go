package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Matches (Al-Imran 3:190), (Surah Nisa 4:135-136), (Quran 31:10), (2:255)
var citationPattern = regexp.MustCompile(`\((?:[^\d()]*\s)?(\d{1,3}):(\d{1,3})(?:[-–](\d{1,3}))?\)`)

// Reference identifies a single verse as surah:ayah
type Reference struct {
	Surah int
	Ayah  int
}

func (r Reference) String() string {
	return fmt.Sprintf("%d:%d", r.Surah, r.Ayah)
}

// ParseReference parses "S:A" with both parts positive
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	surahStr, ayahStr, ok := strings.Cut(s, ":")
	if !ok {
		return Reference{}, fmt.Errorf("invalid reference %q: expected surah:ayah", s)
	}

	surah, err := strconv.Atoi(surahStr)
	if err != nil || surah <= 0 {
		return Reference{}, fmt.Errorf("invalid surah in reference %q", s)
	}
	ayah, err := strconv.Atoi(ayahStr)
	if err != nil || ayah <= 0 {
		return Reference{}, fmt.Errorf("invalid ayah in reference %q", s)
	}

	return Reference{Surah: surah, Ayah: ayah}, nil
}

// ExtractReferences finds every parenthesised verse citation in text. Ranges
// are expanded, duplicates dropped, and the result is ordered by surah then
// ayah.
func ExtractReferences(text string) []Reference {
	refs := citedReferences(text)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Surah != refs[j].Surah {
			return refs[i].Surah < refs[j].Surah
		}
		return refs[i].Ayah < refs[j].Ayah
	})
	return refs
}

// InlineCitations returns the "S:A" references cited in text in order of
// first appearance. Ranges are expanded and repeats dropped.
func InlineCitations(text string) []string {
	refs := citedReferences(text)
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	return out
}

func citedReferences(text string) []Reference {
	seen := make(map[Reference]bool)
	var refs []Reference

	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		surah, _ := strconv.Atoi(m[1])
		start, _ := strconv.Atoi(m[2])
		end := start
		if m[3] != "" {
			end, _ = strconv.Atoi(m[3])
		}
		// reversed ranges are treated as a single verse
		if end < start {
			end = start
		}

		for ayah := start; ayah <= end; ayah++ {
			ref := Reference{Surah: surah, Ayah: ayah}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}
