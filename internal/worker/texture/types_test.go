package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSlotTable(t *testing.T) {
	require.NoError(t, ValidateSlotTable())
}

func TestCanonicalAliases(t *testing.T) {
	tests := []struct {
		alias Type
		want  Type
	}{
		{TypeDiffuse, TypeAlbedo},
		{TypeBump, TypeNormal},
		{TypeDisplacement, TypeHeight},
		{TypeRoughness, TypeRoughness},
	}

	for _, tt := range tests {
		t.Run(tt.alias.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alias.Canonical())
		})
	}
}

func TestSlot(t *testing.T) {
	tests := []struct {
		texType Type
		want    string
	}{
		{TypeAlbedo, "map"},
		{TypeDiffuse, "map"},
		{TypeRoughness, "roughnessMap"},
		{TypeMetallic, "metalnessMap"},
		{TypeAmbientOcclusion, "aoMap"},
		{TypeBump, "normalMap"},
		{TypeDisplacement, "displacementMap"},
		{TypeOpacity, "alphaMap"},
	}

	for _, tt := range tests {
		t.Run(tt.texType.String(), func(t *testing.T) {
			slot, err := tt.texType.Slot()
			require.NoError(t, err)
			assert.Equal(t, tt.want, slot)
		})
	}

	t.Run("unknown type has no slot", func(t *testing.T) {
		_, err := Type(99).Slot()
		assert.Error(t, err)
	})
}

func TestValid(t *testing.T) {
	for id := 1; id <= 12; id++ {
		assert.True(t, Type(id).Valid(), "type %d", id)
	}
	assert.False(t, Type(0).Valid())
	assert.False(t, Type(13).Valid())
}
