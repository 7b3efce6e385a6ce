package services

import (
	"sort"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// FuseRanked merges a vector ranking and a keyword ranking into one
// list using weighted reciprocal rank fusion. Each passage scores
// weight/(k+rank) per list it appears in, with rank starting at 1;
// passages in both lists sum their contributions. Native ranker scores
// never enter the calculation, only positions.
//
// Ties break towards the passage with the better vector rank, then by
// passage id, so equal inputs always produce identical output.
func FuseRanked(vector, keyword domain.RankedList, cfg domain.FusionConfig) domain.FusedResult {
	type fused struct {
		score      float64
		vectorRank int // 0 = absent
	}

	k := float64(cfg.RRFK)
	scores := make(map[string]*fused, len(vector)+len(keyword))

	for i, entry := range vector {
		rank := i + 1
		scores[entry.PassageID] = &fused{
			score:      cfg.VectorWeight / (k + float64(rank)),
			vectorRank: rank,
		}
	}
	for i, entry := range keyword {
		rank := i + 1
		if f, ok := scores[entry.PassageID]; ok {
			f.score += cfg.KeywordWeight / (k + float64(rank))
		} else {
			scores[entry.PassageID] = &fused{
				score: cfg.KeywordWeight / (k + float64(rank)),
			}
		}
	}

	result := make(domain.FusedResult, 0, len(scores))
	for id, f := range scores {
		result = append(result, domain.FusedEntry{PassageID: id, Score: f.score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		ri, rj := scores[result[i].PassageID].vectorRank, scores[result[j].PassageID].vectorRank
		// Absent from the vector list sorts after any vector rank.
		if ri != rj {
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		}
		return result[i].PassageID < result[j].PassageID
	})
	return result
}

// Relevance normalises a fused result's top score to [0,1] so it can
// be compared against the profile's relevance threshold. The divisor
// is the maximum attainable fusion score: rank 1 in both lists with
// the weights summing to 1, i.e. 1/(k+1). An empty result scores 0.
func Relevance(result domain.FusedResult, cfg domain.FusionConfig) float64 {
	if len(result) == 0 {
		return 0
	}
	max := 1.0 / float64(cfg.RRFK+1)
	r := result[0].Score / max
	if r > 1 {
		r = 1
	}
	return r
}
