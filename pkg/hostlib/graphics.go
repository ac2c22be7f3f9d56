// graphics.go adapts the teacher's RGB565 framebuffer math (originally
// pkg/cpu/video.go's rgb565ToRGBA/GetFramebufferRGBA/SaveScreenshot) into a
// small graphics.h-style intrinsic set: a fixed-size indexed framebuffer a
// running program pokes through putpixel/fillrect/setpalette, and a host
// embedding a GUI (cmd/tinycview) reads back concurrently through
// Framebuffer.RGBA.
package hostlib

import (
	"image"
	"image/png"
	"os"
	"sync"

	"tinyc/pkg/eval"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

const (
	fbWidth  = 128
	fbHeight = 128
)

// Framebuffer is an indexed-color bitmap plus a 256-entry RGB565 palette,
// guarded by a mutex since the interpreter goroutine writes it while a GUI
// goroutine (cmd/tinycview) reads it on every frame.
type Framebuffer struct {
	mu      sync.Mutex
	pixels  [fbWidth * fbHeight]byte
	palette [256]uint16
}

// DefaultFramebuffer is the single framebuffer the graphics intrinsics
// draw into. One interpreter process embeds one display, the way the
// teacher's CPU owned one set of graphics banks.
var DefaultFramebuffer = newFramebuffer()

func newFramebuffer() *Framebuffer {
	fb := &Framebuffer{}
	for i := range fb.palette {
		// A default grayscale ramp so an unconfigured palette still shows
		// something recognizable instead of solid black.
		g := uint16(i) & 0x1F
		fb.palette[i] = (g << 11) | (g << 6) | g
	}
	return fb
}

func (fb *Framebuffer) setPixel(x, y int, colorIdx byte) {
	if x < 0 || x >= fbWidth || y < 0 || y >= fbHeight {
		return
	}
	fb.mu.Lock()
	fb.pixels[y*fbWidth+x] = colorIdx
	fb.mu.Unlock()
}

func (fb *Framebuffer) fillRect(x, y, w, h int, colorIdx byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for row := y; row < y+h; row++ {
		if row < 0 || row >= fbHeight {
			continue
		}
		for col := x; col < x+w; col++ {
			if col < 0 || col >= fbWidth {
				continue
			}
			fb.pixels[row*fbWidth+col] = colorIdx
		}
	}
}

func (fb *Framebuffer) setPalette(idx byte, rgb565 uint16) {
	fb.mu.Lock()
	fb.palette[idx] = rgb565
	fb.mu.Unlock()
}

// rgb565ToRGBA expands a 5-6-5 packed color into four RGBA8888 bytes.
func rgb565ToRGBA(val uint16) (r, g, b, a byte) {
	r5 := byte((val >> 11) & 0x1F)
	g6 := byte((val >> 5) & 0x3F)
	b5 := byte(val & 0x1F)
	r = (r5 << 3) | (r5 >> 2)
	g = (g6 << 2) | (g6 >> 4)
	b = (b5 << 3) | (b5 >> 2)
	a = 0xFF
	return
}

// RGBA decodes the framebuffer into a fresh 128x128 RGBA8888 byte slice,
// safe to call from a goroutine other than the interpreter's.
func (fb *Framebuffer) RGBA() []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]byte, fbWidth*fbHeight*4)
	for i, idx := range fb.pixels {
		r, g, b, a := rgb565ToRGBA(fb.palette[idx])
		out[i*4+0] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = a
	}
	return out
}

// Image returns the framebuffer as an *image.RGBA, the shape
// ebiten.NewImageFromImage and png.Encode both expect.
func (fb *Framebuffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    fb.RGBA(),
		Stride: fbWidth * 4,
		Rect:   image.Rect(0, 0, fbWidth, fbHeight),
	}
}

func (fb *Framebuffer) screenshot(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, fb.Image())
}

func putpixelIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	x, err := value.CoerceInt(args[0])
	if err != nil {
		return err
	}
	y, err := value.CoerceInt(args[1])
	if err != nil {
		return err
	}
	c, err := value.CoerceInt(args[2])
	if err != nil {
		return err
	}
	DefaultFramebuffer.setPixel(int(x), int(y), byte(c))
	return nil
}

func fillrectIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	vals := make([]int64, 5)
	for i := range vals {
		n, err := value.CoerceInt(args[i])
		if err != nil {
			return err
		}
		vals[i] = n
	}
	DefaultFramebuffer.fillRect(int(vals[0]), int(vals[1]), int(vals[2]), int(vals[3]), byte(vals[4]))
	return nil
}

func setpaletteIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	idx, err := value.CoerceInt(args[0])
	if err != nil {
		return err
	}
	rgb, err := value.CoerceInt(args[1])
	if err != nil {
		return err
	}
	DefaultFramebuffer.setPalette(byte(idx), uint16(rgb))
	return nil
}

func clearscreenIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	c, err := value.CoerceInt(args[0])
	if err != nil {
		return err
	}
	DefaultFramebuffer.fillRect(0, 0, fbWidth, fbHeight, byte(c))
	return nil
}

func screenshotIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	name, err := readCString(ev.Arena, args[0])
	if err != nil {
		return err
	}
	result := int64(0)
	if err := DefaultFramebuffer.screenshot(name); err != nil {
		result = -1
	}
	_, err = value.AssignInt(ret, result, false)
	return err
}

// RegisterGraphics defines a small indexed-framebuffer intrinsic set on
// top of DefaultFramebuffer (spec.md §3 "SUPPLEMENTED FEATURES").
func RegisterGraphics(ev *eval.Evaluator) error {
	voidT := ev.Types.BaseType(types.Void)
	intT := ev.Types.BaseType(types.Int)
	charPtr := ev.Types.Pointer(ev.Types.BaseType(types.Char))

	p := func(n string) types.Param { return types.Param{Name: n, Type: intT} }

	if err := defineIntrinsic(ev, "putpixel", voidT, []types.Param{p("x"), p("y"), p("c")}, false, putpixelIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "fillrect", voidT, []types.Param{p("x"), p("y"), p("w"), p("h"), p("c")}, false, fillrectIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "setpalette", voidT, []types.Param{p("idx"), p("rgb565")}, false, setpaletteIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "clearscreen", voidT, []types.Param{p("c")}, false, clearscreenIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "screenshot", intT, []types.Param{{Name: "path", Type: charPtr}}, false, screenshotIntrinsic); err != nil {
		return err
	}
	return nil
}
