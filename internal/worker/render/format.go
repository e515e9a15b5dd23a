package render

import (
	"fmt"
	"path"
	"strings"
)

// ModelFormat identifies the source model file format.
type ModelFormat string

const (
	FormatOBJ  ModelFormat = "obj"
	FormatGLTF ModelFormat = "gltf"
	FormatGLB  ModelFormat = "glb"
	FormatFBX  ModelFormat = "fbx"
)

// ParseFormat maps a model filename to its format.
func ParseFormat(filename string) (ModelFormat, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	switch ext {
	case "obj":
		return FormatOBJ, nil
	case "gltf":
		return FormatGLTF, nil
	case "glb":
		return FormatGLB, nil
	case "fbx":
		return FormatFBX, nil
	default:
		return "", fmt.Errorf("unrecognized model format %q", ext)
	}
}

// FlipUV is the per-model UV vertical-flip policy. GLTF-family sources use
// non-flipped UVs; OBJ/FBX-family sources use flipped UVs. The choice is made
// once per model and applied to every texture loaded for it.
func (f ModelFormat) FlipUV() bool {
	switch f {
	case FormatGLTF, FormatGLB:
		return false
	default:
		return true
	}
}

// MimeType is the data-URL media type used to hand model bytes to the page.
func (f ModelFormat) MimeType() string {
	switch f {
	case FormatGLB:
		return "model/gltf-binary"
	case FormatGLTF:
		return "model/gltf+json"
	default:
		return "application/octet-stream"
	}
}
