package xmesh

import (
	"fmt"
	"sort"
)

// DefaultMatchLOD is the LOD auto-match targets when none is given.
const DefaultMatchLOD = 1536

// Candidate is replacement geometry waiting for a slot.
type Candidate struct {
	Name        string `json:"name"`
	VertexCount int    `json:"vertex_count"`
}

// Match assigns a candidate to a slot.
type Match struct {
	Candidate Candidate `json:"candidate"`
	Slot      SlotInfo  `json:"slot"`
}

// MatchReport is the outcome of AutoMatch.
type MatchReport struct {
	Matches   []Match     `json:"matches"`
	Unmatched []Candidate `json:"unmatched"`
}

// Status summarizes the report the way the CLI prints it.
func (r MatchReport) Status() string {
	msg := fmt.Sprintf("Matched %d objects.", len(r.Matches))
	if len(r.Unmatched) > 0 {
		msg += fmt.Sprintf(" Failed to fit %d high-poly objects.", len(r.Unmatched))
	}
	return msg
}

// AutoMatch places the largest candidates first, each into the smallest
// unused slot of lod whose vertex capacity holds it. Slots without a
// metadata record are never used.
func AutoMatch(cands []Candidate, slots []SlotInfo, lod uint16) (MatchReport, error) {
	var open []SlotInfo
	for _, s := range slots {
		if s.LOD == lod && s.HasMetadata {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return MatchReport{}, fmt.Errorf("xmesh: no submeshes with LOD %d", lod)
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].Vertices < open[j].Vertices })

	order := append([]Candidate(nil), cands...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].VertexCount > order[j].VertexCount })

	used := make([]bool, len(open))
	var rep MatchReport
	for _, c := range order {
		slot := -1
		for i, s := range open {
			if !used[i] && s.Vertices >= c.VertexCount {
				slot = i
				break
			}
		}
		if slot < 0 {
			rep.Unmatched = append(rep.Unmatched, c)
			continue
		}
		used[slot] = true
		rep.Matches = append(rep.Matches, Match{Candidate: c, Slot: open[slot]})
	}
	return rep, nil
}
