// Package skeleton decodes the bone hierarchy stored in a metadata container
// and composes bind-pose world matrices from it.
package skeleton

import (
	"errors"
	"fmt"

	"xmesh-tool/internal/binio"
	"xmesh-tool/internal/mathutil"
	"xmesh-tool/internal/xpps"
)

// ErrMalformed marks a skeleton whose hierarchy cannot be composed.
var ErrMalformed = errors.New("skeleton: malformed hierarchy")

const (
	signature    = "60SE"
	noParent     = 0x7FFF
	boneSize     = 48
	parentRecord = 4
)

// Bone is one local bind transform.
type Bone struct {
	Index    int           `json:"index"`
	Rotation mathutil.Quat `json:"rotation"`
	Position mathutil.Vec3 `json:"position"`
	Scale    mathutil.Vec3 `json:"scale"`
	// Parent is -1 for roots.
	Parent int `json:"parent"`
}

// Skeleton is a validated bone list. order visits parents before children.
type Skeleton struct {
	Bones []Bone
	order []int
}

// New validates bones: every parent must be -1 or a valid index, and the
// parent chains must be acyclic.
func New(bones []Bone) (*Skeleton, error) {
	n := len(bones)
	children := make([][]int, n)
	var roots []int
	for i, b := range bones {
		switch {
		case b.Parent == -1:
			roots = append(roots, i)
		case b.Parent < 0 || b.Parent >= n:
			return nil, fmt.Errorf("%w: bone %d has parent %d of %d bones", ErrMalformed, i, b.Parent, n)
		case b.Parent == i:
			return nil, fmt.Errorf("%w: bone %d is its own parent", ErrMalformed, i)
		default:
			children[b.Parent] = append(children[b.Parent], i)
		}
	}

	// breadth-first from the roots; anything unreached sits on a cycle
	order := make([]int, 0, n)
	order = append(order, roots...)
	for head := 0; head < len(order); head++ {
		order = append(order, children[order[head]]...)
	}
	if len(order) != n {
		reached := make([]bool, n)
		for _, i := range order {
			reached[i] = true
		}
		for i, ok := range reached {
			if !ok {
				return nil, fmt.Errorf("%w: bone %d is on a parent cycle", ErrMalformed, i)
			}
		}
	}
	return &Skeleton{Bones: bones, order: order}, nil
}

// Len returns the bone count.
func (s *Skeleton) Len() int { return len(s.Bones) }

// Order returns bone indices with every parent before its children.
func (s *Skeleton) Order() []int { return s.order }

// Local returns the local transform of bone i.
func (s *Skeleton) Local(i int) mathutil.Mat4 {
	b := s.Bones[i]
	return mathutil.LocRotScale(b.Position, b.Rotation, b.Scale)
}

// WorldMatrices composes world = parent world × local in engine space.
func (s *Skeleton) WorldMatrices() []mathutil.Mat4 {
	worlds := make([]mathutil.Mat4, len(s.Bones))
	for _, i := range s.order {
		local := s.Local(i)
		if p := s.Bones[i].Parent; p >= 0 {
			worlds[i] = mathutil.Mat4Mul(worlds[p], local)
		} else {
			worlds[i] = local
		}
	}
	return worlds
}

// Decode reads the skeleton referenced by the info block at infoAddr.
// It returns nil without error when infoAddr is zero or the skeleton
// signature does not match: those assets have no skeleton.
func Decode(data []byte, infoAddr, dataStart int64) (*Skeleton, error) {
	if infoAddr == 0 {
		return nil, nil
	}
	c := binio.NewCursor(data)
	c.SeekTo(infoAddr)
	c.Skip(16)
	skelOff := c.U64()
	c.Skip(8)
	parentsOff := c.U64()
	parentsEnd := c.U64()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("skeleton: info block: %w", err)
	}

	c.SeekTo(dataStart + int64(skelOff))
	if c.String(4) != signature {
		return nil, nil
	}
	c.Skip(12)
	n := int(c.U16())
	c.Skip(6)
	bonesAt := c.RelOffset32()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("skeleton: header: %w", err)
	}

	parents := make([]int, n)
	for i := range parents {
		parents[i] = -1
	}
	if parentsEnd > parentsOff {
		count := int64(parentsEnd-parentsOff) / parentRecord
		if count > int64(len(data))/parentRecord {
			return nil, fmt.Errorf("%w: parent table claims %d entries", ErrMalformed, count)
		}
		c.SeekTo(dataStart + int64(parentsOff))
		for k := int64(0); k < count; k++ {
			idx := int(c.U16())
			p := int(c.I16()) & noParent
			if p == noParent {
				p = -1
			}
			if idx < n {
				parents[idx] = p
			}
		}
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("skeleton: parent table: %w", err)
		}
	}

	if bonesAt+int64(n)*boneSize > int64(len(data)) {
		return nil, fmt.Errorf("skeleton: %d bones at %d: %w", n, bonesAt, binio.ErrOutOfBounds)
	}
	c.SeekTo(bonesAt)
	bones := make([]Bone, n)
	for i := range bones {
		rot := c.Vec4()
		pos := c.Vec4()
		scl := c.Vec4()
		bones[i] = Bone{
			Index:    i,
			Rotation: mathutil.QuatFromEngine(rot),
			Position: mathutil.Vec3{float64(pos[0]), float64(pos[1]), float64(pos[2])},
			Scale:    mathutil.Vec3{float64(scl[0]), float64(scl[1]), float64(scl[2])},
			Parent:   parents[i],
		}
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("skeleton: bones: %w", err)
	}
	return New(bones)
}

// Read decodes the metadata container in data and then its skeleton.
func Read(data []byte) (*Skeleton, error) {
	md, err := xpps.Decode(data)
	if err != nil {
		return nil, err
	}
	return Decode(data, md.SkeletonInfo, md.DataStart)
}
