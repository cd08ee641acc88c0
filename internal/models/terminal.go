package models

// TerminalSize is the geometry of the local terminal.
type TerminalSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// TerminalParams is the body of a geometry update sent on the terminal side-channel.
type TerminalParams struct {
	Size TerminalSize `json:"size"`
}
