package tui

// Keybinding constants
const (
	KeyTab        = "tab"
	KeyShiftTab   = "shift+tab"
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyEsc        = "esc"
	KeyPane1      = "1"
	KeyPane2      = "2"
	KeyPane3      = "3"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyAdd        = "a"
	KeyDone       = "d"
	KeyInProgress = "p"
	KeyRemove     = "x"
	KeyRefresh    = "r"
	KeyHideDone   = "h"
	KeySettings   = "s"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Tab: cycle focus | j/k: move | a: add | d: done | p: in progress | x: remove | h: hide done | r: refresh | s: settings | q: quit")
}
