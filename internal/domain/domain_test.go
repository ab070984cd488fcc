package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconSizeTable(t *testing.T) {
	require.Len(t, IconSizeTable, 15)

	names := make(map[string]bool, len(IconSizeTable))
	for _, size := range IconSizeTable {
		assert.NotContains(t, size.Filename()[:len(size.Filename())-len(".png")], ".")
		names[size.Filename()] = true
	}
	assert.Len(t, names, 15, "icon filenames must be unique")

	tests := []struct {
		size     IconSize
		pixels   int
		filename string
	}{
		{IconSize{Base: 20, Scale: 1}, 20, "icon_20x20@1x.png"},
		{IconSize{Base: 29, Scale: 3}, 87, "icon_29x29@3x.png"},
		{IconSize{Base: 83.5, Scale: 2}, 167, "icon_83p5x83p5@2x.png"},
		{IconSize{Base: 1024, Scale: 1}, 1024, "icon_1024x1024@1x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.pixels, tt.size.Pixels())
			assert.Equal(t, tt.filename, tt.size.Filename())
		})
	}
}

func TestParseFilterKind(t *testing.T) {
	kind, err := ParseFilterKind("")
	require.NoError(t, err)
	assert.Equal(t, FilterGrayscale, kind)

	kind, err = ParseFilterKind(" Blur ")
	require.NoError(t, err)
	assert.Equal(t, FilterBlur, kind)

	_, err = ParseFilterKind("sepia")
	assert.True(t, errors.Is(err, ErrUnknownFilter))
}

func TestTransformSpecValidate(t *testing.T) {
	assert.NoError(t, ResizeSpec(0, 0).Validate())
	assert.Equal(t, 1024, ResizeSpec(0, 0).Width)
	assert.Equal(t, 1024, ResizeSpec(0, 0).Height)

	assert.ErrorIs(t, TransformSpec{Op: OpConvert, Width: -1, Height: 10}.Validate(), ErrInvalidSpec)
	assert.ErrorIs(t, TransformSpec{Op: OpConvert, Width: 9000, Height: 10}.Validate(), ErrInvalidSpec)
	assert.ErrorIs(t, TransformSpec{Op: OpFilter, Filter: "posterize"}.Validate(), ErrUnknownFilter)
	assert.ErrorIs(t, TransformSpec{Op: "explode"}.Validate(), ErrInvalidSpec)

	typo := TypographySpec("", 0)
	require.NoError(t, typo.Validate())
	assert.Equal(t, DefaultText, typo.Text)
	assert.Equal(t, DefaultFontSize, typo.FontSize)
	assert.ErrorIs(t, TypographySpec("hi", 4096).Validate(), ErrInvalidSpec)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "converted_image.png", ResizeSpec(0, 0).OutputName())
	assert.Equal(t, "filtered_blur.png", TransformSpec{Op: OpFilter, Filter: FilterBlur}.OutputName())
	assert.Equal(t, IconSetArchiveName, TransformSpec{Op: OpIconSet}.OutputName())
	assert.Equal(t, "srgb_converted.png", TransformSpec{Op: OpColorProfile}.OutputName())
}

func TestJobFinished(t *testing.T) {
	assert.False(t, Job{Status: JobStatusQueued}.Finished())
	assert.True(t, Job{Status: JobStatusFailed}.Finished())
	assert.True(t, Job{Status: JobStatusSucceeded}.Finished())
}
