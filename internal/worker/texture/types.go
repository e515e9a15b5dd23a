package texture

import "fmt"

// Type is the numeric texture taxonomy used by the asset API.
type Type int

const (
	TypeAlbedo Type = iota + 1
	TypeNormal
	TypeHeight
	TypeAmbientOcclusion
	TypeRoughness
	TypeMetallic
	TypeDiffuse // treated as Albedo
	TypeSpecular
	TypeEmissive
	TypeBump // treated as Normal
	TypeOpacity
	TypeDisplacement // treated as Height
)

// canonical collapses alias types onto their rendering equivalent.
var canonical = map[Type]Type{
	TypeAlbedo:           TypeAlbedo,
	TypeNormal:           TypeNormal,
	TypeHeight:           TypeHeight,
	TypeAmbientOcclusion: TypeAmbientOcclusion,
	TypeRoughness:        TypeRoughness,
	TypeMetallic:         TypeMetallic,
	TypeDiffuse:          TypeAlbedo,
	TypeSpecular:         TypeSpecular,
	TypeEmissive:         TypeEmissive,
	TypeBump:             TypeNormal,
	TypeOpacity:          TypeOpacity,
	TypeDisplacement:     TypeHeight,
}

// slotTable maps canonical texture types to material slots in the viewer.
var slotTable = map[Type]string{
	TypeAlbedo:           "map",
	TypeNormal:           "normalMap",
	TypeHeight:           "displacementMap",
	TypeAmbientOcclusion: "aoMap",
	TypeRoughness:        "roughnessMap",
	TypeMetallic:         "metalnessMap",
	TypeSpecular:         "specularColorMap",
	TypeEmissive:         "emissiveMap",
	TypeOpacity:          "alphaMap",
}

// names are the canonical display names, for logging and events.
var names = map[Type]string{
	TypeAlbedo:           "Albedo",
	TypeNormal:           "Normal",
	TypeHeight:           "Height",
	TypeAmbientOcclusion: "AmbientOcclusion",
	TypeRoughness:        "Roughness",
	TypeMetallic:         "Metallic",
	TypeDiffuse:          "Albedo",
	TypeSpecular:         "Specular",
	TypeEmissive:         "Emissive",
	TypeBump:             "Normal",
	TypeOpacity:          "Opacity",
	TypeDisplacement:     "Height",
}

// Valid reports whether t is a known taxonomy entry.
func (t Type) Valid() bool {
	_, ok := canonical[t]
	return ok
}

// Canonical resolves alias types (Diffuse, Bump, Displacement) to the type
// that actually drives rendering.
func (t Type) Canonical() Type {
	if c, ok := canonical[t]; ok {
		return c
	}
	return t
}

func (t Type) String() string {
	if name, ok := names[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Slot returns the material slot for t.
func (t Type) Slot() (string, error) {
	slot, ok := slotTable[t.Canonical()]
	if !ok {
		return "", fmt.Errorf("no material slot for texture type %s", t)
	}
	return slot, nil
}

// ValidateSlotTable checks at startup that every taxonomy entry resolves to
// a material slot.
func ValidateSlotTable() error {
	for t := range canonical {
		if _, err := t.Slot(); err != nil {
			return err
		}
	}
	return nil
}
