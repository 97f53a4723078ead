package canvas

import (
	"image"
	"image/color"
	"log/slog"
	"strings"

	"gocv.io/x/gocv"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

const keyEscape = 27

// Error screen layout.
const (
	errorScreenWidth  = 640
	errorScreenHeight = 360
	errorLineWidth    = 48
	errorFontScale    = 0.6
	errorLineHeight   = 28
	errorMargin       = 24
)

var (
	errorBackground = color.RGBA{R: 32, G: 32, B: 32, A: 255}
	errorForeground = color.RGBA{R: 255, G: 96, B: 96, A: 255}
)

// Window is the desktop host: it shows presented frames, reflects the
// loading state in its title and replaces the preview with an error screen.
type Window struct {
	title   string
	win     *gocv.Window
	loading bool
	message string
	width   int
	height  int
}

var (
	_ faceoverlay.UI = (*Window)(nil)
	_ Presenter      = (*Window)(nil)
)

// NewWindow opens a window showing the loading marker. Must be called on
// the main thread.
func NewWindow(title string) *Window {
	w := &Window{
		title:   title,
		win:     gocv.NewWindow(title),
		loading: true,
	}
	w.win.SetWindowTitle(windowTitle(title, true))
	return w
}

// Show displays frame unless an error screen is up.
func (w *Window) Show(frame gocv.Mat) {
	if w.message != "" {
		return
	}
	w.width, w.height = frame.Cols(), frame.Rows()
	w.win.IMShow(frame)
}

// SetLoading toggles the loading marker in the title.
func (w *Window) SetLoading(visible bool) {
	if w.loading == visible {
		return
	}
	w.loading = visible
	w.win.SetWindowTitle(windowTitle(w.title, visible))
}

// ShowError draws message on a blank screen, replacing any previous one.
func (w *Window) ShowError(message string) {
	w.message = message

	width, height := w.width, w.height
	if width < errorScreenWidth || height < errorScreenHeight {
		width, height = errorScreenWidth, errorScreenHeight
	}

	screen := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer screen.Close()
	gocv.Rectangle(&screen, image.Rect(0, 0, width, height), errorBackground, -1)

	y := errorMargin + errorLineHeight
	for _, line := range wrap(message, errorLineWidth) {
		gocv.PutText(&screen, line, image.Pt(errorMargin, y), gocv.FontHersheySimplex, errorFontScale, errorForeground, 1)
		y += errorLineHeight
	}
	w.win.IMShow(screen)
	slog.Debug("canvas: error screen shown", "message", message)
}

// Poll pumps window events and reports whether the user asked to quit
// (ESC or the window was closed).
func (w *Window) Poll() bool {
	key := w.win.WaitKey(1)
	return key == keyEscape || !w.win.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

func windowTitle(title string, loading bool) string {
	if loading {
		return title + " - loading"
	}
	return title
}

// wrap breaks text into lines of at most width runes, splitting on spaces.
// A single word longer than width gets a line of its own.
func wrap(text string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(word)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
