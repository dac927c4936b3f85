package tui

// Key bindings handled in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeySpace      = " "
	KeyNext       = "n"
	KeyRight      = "right"
	KeyPrevious   = "p"
	KeyLeft       = "left"
	KeyEdit       = "e"
	KeyCopy       = "c"
	KeyFinish     = "f"
	KeyRetry      = "r"
	KeySave       = "ctrl+s"
	KeyCancel     = "esc"
	KeyBackspace  = "backspace"
	KeyEnter      = "enter"
	KeyConfirmYes = "y"
)
