package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	a4Width  = 595.28
	a4Height = 841.89
)

func TestZoneBoxA4(t *testing.T) {
	zone := models.SignatureZone{Page: 1, X: 10, Y: 80, Width: 25, Height: 10}
	box := zoneBox(zone, a4Width, a4Height)

	assert.InDelta(t, 148.82, box.W, 0.01)
	assert.InDelta(t, 84.19, box.H, 0.01)
	assert.InDelta(t, 59.53, box.X, 0.01)
	// y flips: (100-80)% of the page height, minus the box height.
	assert.InDelta(t, a4Height*0.20-box.H, box.Y, 0.01)
	assert.InDelta(t, 84.19, box.Y, 0.01)
}

func TestZoneBoxTopLeftOrigin(t *testing.T) {
	// A zone at the very top of the page lands at the top in point space.
	zone := models.SignatureZone{Page: 1, X: 0, Y: 0, Width: 10, Height: 10}
	box := zoneBox(zone, 1000, 1000)

	assert.Equal(t, 0.0, box.X)
	assert.Equal(t, 900.0, box.Y)
	assert.Equal(t, 100.0, box.W)
	assert.Equal(t, 100.0, box.H)
}

func TestZoneBoxBottomEdge(t *testing.T) {
	zone := models.SignatureZone{Page: 1, X: 50, Y: 90, Width: 20, Height: 10}
	box := zoneBox(zone, 1000, 1000)

	// Box anchored so its top sits at 90% from the page top.
	assert.Equal(t, 0.0, box.Y)
}

func TestStampFontSize(t *testing.T) {
	assert.Equal(t, 6.0, stampFontSize(10))   // floor kicks in
	assert.Equal(t, 12.0, stampFontSize(100)) // proportional
}

func testSignaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for x := 0; x < 80; x++ {
		img.Set(x, 20, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRenderOverlayDimensions(t *testing.T) {
	box := StampBox{X: 50, Y: 50, W: 150, H: 80}
	out, err := renderOverlay(box, "Jeanne Martin", "2026-08-31", testSignaturePNG(t))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, int(math.Round(box.W*overlayScale)), decoded.Bounds().Dx())
	assert.Equal(t, int(math.Round(box.H*overlayScale)), decoded.Bounds().Dy())
}

func TestRenderOverlayRejectsBadImage(t *testing.T) {
	box := StampBox{X: 0, Y: 0, W: 100, H: 60}
	_, err := renderOverlay(box, "X", "2026-01-01", []byte("not an image"))
	require.Error(t, err)
	assert.Equal(t, CodeRender, errors.GetCode(err))
}

func TestDefaultZoneLandsOnLastPage(t *testing.T) {
	zone := DefaultZone(7)
	assert.Equal(t, 7, zone.Page)
	assert.True(t, zone.X >= 50, "default zone sits in the right half")
	assert.True(t, zone.Y >= 50, "default zone sits in the lower half")

	// Degenerate page counts still yield a stampable zone.
	assert.Equal(t, 1, DefaultZone(0).Page)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, clampPage(0, 5))
	assert.Equal(t, 1, clampPage(-3, 5))
	assert.Equal(t, 3, clampPage(3, 5))
	assert.Equal(t, 5, clampPage(9, 5))
}
