// Package vertex converts between packed vertex attribute lanes and
// float vectors.
package vertex

import "fmt"

// Format is the numeric attribute format identifier stored in the
// metadata container's attribute descriptors.
type Format uint32

const (
	FormatFloat3     Format = 3254029  // 32_32_32 float position
	FormatSnorm16x3  Format = 3252492  // 16_16_16 snorm compressed position
	FormatHalf2      Format = 2205445  // 16_16 float UV
	FormatBoneIndex  Format = 11642124 // 16_16_16_16 bone indices
	FormatUnorm8x4   Format = 11640842 // 8_8_8_8 unorm weights or colors
	FormatPacked10   Format = 3252233  // 10_10_10_2 normal or tangent
	FormatHalf1      Format = 2107138  // 16 float, extra data
	FormatExtraU16   Format = 2105601
	FormatExtraF32x2 Format = 107531
	FormatExtraF32   Format = 9220
	FormatExtraI16   Format = 9218
	FormatExtraI32   Format = 107525
)

var formatNames = map[Format]string{
	FormatFloat3:     "Float3",
	FormatSnorm16x3:  "Snorm16x3",
	FormatHalf2:      "Half2",
	FormatBoneIndex:  "BoneIndex",
	FormatUnorm8x4:   "Unorm8x4",
	FormatPacked10:   "Packed1010102",
	FormatHalf1:      "Half1",
	FormatExtraU16:   "ExtraU16",
	FormatExtraF32x2: "ExtraF32x2",
	FormatExtraF32:   "ExtraF32",
	FormatExtraI16:   "ExtraI16",
	FormatExtraI32:   "ExtraI32",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// Role is the semantic meaning an attribute takes inside one mesh.
type Role int

const (
	RoleUnknown Role = iota
	RolePosition
	RoleNormal
	RoleTangent
	RoleUV
	RoleColor
	RoleWeights
	RoleBoneIndex
	RoleExtra
)

func (r Role) String() string {
	switch r {
	case RolePosition:
		return "position"
	case RoleNormal:
		return "normal"
	case RoleTangent:
		return "tangent"
	case RoleUV:
		return "uv"
	case RoleColor:
		return "color"
	case RoleWeights:
		return "weights"
	case RoleBoneIndex:
		return "bone_index"
	case RoleExtra:
		return "extra"
	}
	return "unknown"
}

// Roles assigns a role to every attribute of a descriptor array.
//
// The first packed 10_10_10_2 attribute is the normal and the second the
// tangent; later ones carry no role. A byte4 attribute holds skin weights
// when the array also has a bone index attribute, colors otherwise.
func Roles(formats []Format) []Role {
	hasBones := false
	for _, f := range formats {
		if f == FormatBoneIndex {
			hasBones = true
			break
		}
	}

	roles := make([]Role, len(formats))
	packed := 0
	for i, f := range formats {
		switch f {
		case FormatSnorm16x3, FormatFloat3:
			roles[i] = RolePosition
		case FormatPacked10:
			switch packed {
			case 0:
				roles[i] = RoleNormal
			case 1:
				roles[i] = RoleTangent
			}
			packed++
		case FormatHalf2:
			roles[i] = RoleUV
		case FormatUnorm8x4:
			if hasBones {
				roles[i] = RoleWeights
			} else {
				roles[i] = RoleColor
			}
		case FormatBoneIndex:
			roles[i] = RoleBoneIndex
		case FormatExtraU16, FormatExtraF32x2, FormatExtraF32, FormatExtraI16, FormatExtraI32:
			roles[i] = RoleExtra
		}
	}
	return roles
}
