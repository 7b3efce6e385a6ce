package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// excerptLength caps citation excerpts.
const excerptLength = 200

// ExtractCitations finds [n] markers in a generated answer, maps them
// to the passages as presented to the model (1-based) and renumbers
// the surviving markers sequentially from 1. Markers pointing outside
// the presented list keep a renumbered marker but produce no citation.
//
// Renumbering goes through <<n>> placeholders so replacing [3] with
// [1] cannot cascade into a later literal [1].
func ExtractCitations(response string, passages []domain.Passage) (string, []domain.Citation) {
	matches := citationMarker.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return response, nil
	}

	seen := make(map[int]bool)
	var used []int
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil || seen[idx] {
			continue
		}
		seen[idx] = true
		used = append(used, idx)
	}
	sort.Ints(used)

	oldToNew := make(map[int]int, len(used))
	for newIdx, oldIdx := range used {
		oldToNew[oldIdx] = newIdx + 1
	}

	renumbered := response
	for _, oldIdx := range used {
		renumbered = strings.ReplaceAll(renumbered,
			fmt.Sprintf("[%d]", oldIdx), fmt.Sprintf("<<%d>>", oldIdx))
	}
	for _, oldIdx := range used {
		renumbered = strings.ReplaceAll(renumbered,
			fmt.Sprintf("<<%d>>", oldIdx), fmt.Sprintf("[%d]", oldToNew[oldIdx]))
	}

	var citations []domain.Citation
	for _, oldIdx := range used {
		pos := oldIdx - 1
		if pos < 0 || pos >= len(passages) {
			continue
		}
		p := passages[pos]

		excerpt := p.Content
		if runes := []rune(excerpt); len(runes) > excerptLength {
			excerpt = string(runes[:excerptLength]) + "..."
		}
		page := 0
		if len(p.PageNumbers) > 0 {
			page = p.PageNumbers[0]
		}
		citations = append(citations, domain.Citation{
			Index:        oldToNew[oldIdx],
			PassageID:    p.ID,
			DocumentID:   p.DocumentID,
			DocumentName: p.DocumentName,
			Page:         page,
			Excerpt:      excerpt,
		})
	}
	return renumbered, citations
}
