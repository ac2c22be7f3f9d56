// Command tinycview is a live framebuffer viewer for programs that poke
// the putpixel/fillrect/setpalette/clearscreen intrinsics (pkg/hostlib's
// graphics.go), the same role the teacher's cmd/desktop/main.go plays for
// gocpu's memory-mapped video banks: run the program in the background
// and repaint an ebiten window from whatever it last drew.
package main

import (
	"fmt"
	"image"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/draw"

	"tinyc/pkg/hostlib"
	"tinyc/pkg/interp"
)

const (
	fbSize     = 128
	windowSize = 512 // 4x scale, matching the teacher's 2x-on-128 -> 256 convention scaled up for a modern display
)

// game adapts interp's single-shot ParseSource/CallEntry run into an
// ebiten.Game: the interpreted program runs to completion on its own
// goroutine (spec.md §5 "single-threaded cooperative evaluation" — tinyc
// itself never yields mid-expression), while Draw polls the shared
// framebuffer every tick, exactly as cmd/desktop's Game.Draw polled
// vm.GetFramebufferRGBA() every frame without synchronizing with CPU
// stepping.
type game struct {
	scaled *ebiten.Image
	done   chan struct{}
	runErr error
	exit   int
	src    *image.RGBA
	dst    *image.RGBA
}

func newGame() *game {
	return &game{
		scaled: ebiten.NewImage(windowSize, windowSize),
		done:   make(chan struct{}),
		src:    image.NewRGBA(image.Rect(0, 0, fbSize, fbSize)),
		dst:    image.NewRGBA(image.Rect(0, 0, windowSize, windowSize)),
	}
}

func (g *game) runProgram(path string) {
	defer close(g.done)

	source, err := os.ReadFile(path)
	if err != nil {
		g.runErr = err
		return
	}

	in := interp.Initialize(interp.Config{StackSize: interp.StackSizeFromEnv(), File: path})
	if err := in.IncludeAllSystemHeaders(); err != nil {
		g.runErr = err
		return
	}
	exitCode, err := in.SetExitPoint(func() error {
		if err := in.ParseSource(path, source, false); err != nil {
			return err
		}
		code, err := in.CallEntry(os.Args[2:])
		g.exit = code
		return err
	})
	g.exit = exitCode
	g.runErr = err
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}
	return nil
}

// Draw copies hostlib.DefaultFramebuffer into g.src and upscales it into
// g.dst with draw.ApproxBiLinear, the same scaler the teacher's
// pkg/peripherals/camera.go uses to resample a captured frame into a
// peripheral's declared resolution — chosen there (and here) over
// Catmull-Rom because it avoids dark "ringing" halos on thin high-contrast
// lines, which a pixel-art framebuffer is full of.
func (g *game) Draw(screen *ebiten.Image) {
	copy(g.src.Pix, hostlib.DefaultFramebuffer.RGBA())
	draw.ApproxBiLinear.Scale(g.dst, g.dst.Bounds(), g.src, g.src.Bounds(), draw.Src, nil)
	g.scaled.WritePixels(g.dst.Pix)
	screen.DrawImage(g.scaled, nil)

	if g.runErr != nil {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("error: %v", g.runErr), 4, 4)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return windowSize, windowSize
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tinycview <source.c> [prog-args...]")
		os.Exit(2)
	}

	g := newGame()
	go g.runProgram(os.Args[1])

	ebiten.SetWindowSize(windowSize, windowSize)
	ebiten.SetWindowTitle("tinycview")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
	<-g.done
	if g.runErr != nil {
		fmt.Fprintln(os.Stderr, g.runErr)
		os.Exit(1)
	}
	os.Exit(g.exit)
}
