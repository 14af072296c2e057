package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"
	"sync"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/jmgilman/go/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// overlayScale is the supersampling factor for stamp overlays: pixels
// rendered per PDF point. The watermark is scaled back down by the same
// factor so the stamp lands at exact point dimensions.
const overlayScale = 4

// StampBox is a zone resolved into PDF point space: x and y locate the
// lower-left corner of the box from the page origin.
type StampBox struct {
	X, Y, W, H float64
}

// zoneBox converts a percentage zone into point coordinates on a page. The
// zone's y runs top-down (UI convention) while the page origin is
// bottom-left, hence the flip. This is the only place that transform lives.
func zoneBox(zone models.SignatureZone, pageW, pageH float64) StampBox {
	w := zone.Width / 100 * pageW
	h := zone.Height / 100 * pageH
	x := zone.X / 100 * pageW
	y := (100-zone.Y)/100*pageH - h
	return StampBox{X: x, Y: y, W: w, H: h}
}

// stampFontSize keeps the text legible in tiny zones: proportional to the
// box height with a 6pt floor.
func stampFontSize(boxH float64) float64 {
	return math.Max(6, boxH*0.12)
}

var (
	stampFont     *opentype.Font
	stampFontErr  error
	stampFontOnce sync.Once
)

func loadStampFont() (*opentype.Font, error) {
	stampFontOnce.Do(func() {
		stampFont, stampFontErr = opentype.Parse(goregular.TTF)
	})
	return stampFont, stampFontErr
}

var (
	stampBorderColor = color.RGBA{R: 0x2c, G: 0x3e, B: 0x50, A: 0xff}
	stampTextColor   = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// renderOverlay composes one zone's stamp as a transparent PNG at
// overlayScale pixels per point: the box outline, the label and metadata
// lines, and the signature image fitted into 40% of the box and anchored to
// the bottom-right corner with an 8pt inset.
func renderOverlay(box StampBox, signerName, signerDate string, signatureImage []byte) ([]byte, error) {
	sig, _, err := image.Decode(bytes.NewReader(signatureImage))
	if err != nil {
		return nil, errors.Wrap(err, CodeRender, "signature image could not be decoded")
	}

	widthPx := int(math.Round(box.W * overlayScale))
	heightPx := int(math.Round(box.H * overlayScale))
	if widthPx < 1 || heightPx < 1 {
		return nil, errors.Newf(CodeRender, "zone collapses to an empty box (%.2fx%.2fpt)", box.W, box.H)
	}
	canvas := image.NewRGBA(image.Rect(0, 0, widthPx, heightPx))

	drawBorder(canvas, overlayScale)

	fontSize := stampFontSize(box.H)
	ft, err := loadStampFont()
	if err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to load stamp font")
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    fontSize * overlayScale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to size stamp font")
	}
	defer face.Close()

	lines := []string{
		"ELECTRONIC SIGNATURE",
		fmt.Sprintf("Signer: %s", signerName),
		fmt.Sprintf("Date: %s", signerDate),
	}
	const padPt = 6.0
	lineHeight := fontSize * 1.3 * overlayScale
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(stampTextColor),
		Face: face,
	}
	for i, line := range lines {
		baseline := padPt*overlayScale + float64(i+1)*lineHeight
		drawer.Dot = fixed.P(int(padPt*overlayScale), int(baseline))
		drawer.DrawString(line)
	}

	// Fit the signature uniformly into 40% of the box, bottom-right, 8pt in.
	sigBounds := sig.Bounds()
	imgW := float64(sigBounds.Dx())
	imgH := float64(sigBounds.Dy())
	scale := math.Min(0.4*box.W/imgW, 0.4*box.H/imgH)
	targetW := imgW * scale * overlayScale
	targetH := imgH * scale * overlayScale
	const insetPt = 8.0
	x1 := widthPx - int(insetPt*overlayScale)
	y1 := heightPx - int(insetPt*overlayScale)
	x0 := x1 - int(targetW)
	y0 := y1 - int(targetH)
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x0, y0, x1, y1), sig, sigBounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to encode stamp overlay")
	}
	return buf.Bytes(), nil
}

// drawBorder strokes a 1pt outline around the canvas edge.
func drawBorder(canvas *image.RGBA, scale int) {
	b := canvas.Bounds()
	stroke := scale // 1pt
	border := image.NewUniform(stampBorderColor)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+stroke), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Max.Y-stroke, b.Max.X, b.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Min.X+stroke, b.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Max.X-stroke, b.Min.Y, b.Max.X, b.Max.Y), border, image.Point{}, draw.Src)
}
