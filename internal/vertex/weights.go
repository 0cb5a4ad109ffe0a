package vertex

// Influence is one bone assignment of a vertex.
type Influence struct {
	Bone   int
	Weight float32
}

const (
	// implicitWeightTotal is the byte budget shared by the four slots; slot 0
	// receives whatever the explicit slots leave over.
	implicitWeightTotal = 255
	// MinInfluence drops assignments too small to matter after renormalizing.
	MinInfluence = 0.001
)

// ReconstructWeights rebuilds the skin influences of one vertex from its
// bone index lane and byte4 weight lane.
//
// Slot 0's weight is implicit. Weight byte k belongs to slot k+1 and only
// counts when that slot's bone id is not -1. A negative slot 0 id maps to
// bone 0. Surviving weights are renormalized to sum to one; anything below
// MinInfluence is dropped and the rest renormalized again.
func ReconstructWeights(ids [4]int16, weights [4]uint8) []Influence {
	var explicit [4]int
	sum := 0
	for slot := 1; slot < 4; slot++ {
		if ids[slot] != -1 {
			explicit[slot] = int(weights[slot-1])
			sum += explicit[slot]
		}
	}
	explicit[0] = max(0, implicitWeightTotal-sum)

	bones := [4]int{int(ids[0]), int(ids[1]), int(ids[2]), int(ids[3])}
	if bones[0] < 0 {
		bones[0] = 0
	}

	var out []Influence
	var total float32
	for slot := 0; slot < 4; slot++ {
		if bones[slot] < 0 || explicit[slot] <= 0 {
			continue
		}
		w := float32(explicit[slot]) / 255.0
		out = append(out, Influence{Bone: bones[slot], Weight: w})
		total += w
	}
	if total <= 0 {
		return nil
	}

	kept := out[:0]
	var keptTotal float32
	for _, in := range out {
		in.Weight /= total
		if in.Weight > MinInfluence {
			kept = append(kept, in)
			keptTotal += in.Weight
		}
	}
	for i := range kept {
		kept[i].Weight /= keptTotal
	}
	return kept
}
