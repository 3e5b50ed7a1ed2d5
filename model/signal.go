package model

// Signal is one frame pushed to a connected client over its websocket.
type Signal struct {
	SignalType SignalType     `json:"signalType"`
	Render     *RenderSignal  `json:"render,omitempty"`
	Control    *ControlSignal `json:"control,omitempty"`
	Notice     string         `json:"notice,omitempty"`
}

// ControlSignal mirrors a navigation-control change: either the section
// became the active one, or its visibility flipped with a feature flag.
type ControlSignal struct {
	Section Section `json:"section"`
	Active  bool    `json:"active,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
}

type SignalType string

const (
	// SignalTypeRender carries replacement content for a section container.
	SignalTypeRender SignalType = "RENDER"
	// SignalTypeControl carries a navigation-control change.
	SignalTypeControl SignalType = "CONTROL"
	// SignalTypeNotice carries a user-facing notification line.
	SignalTypeNotice SignalType = "NOTICE"
)

var AllSignalType = []SignalType{
	SignalTypeRender,
	SignalTypeControl,
	SignalTypeNotice,
}

func (e SignalType) IsValid() bool {
	switch e {
	case SignalTypeRender, SignalTypeControl, SignalTypeNotice:
		return true
	}
	return false
}

func (e SignalType) String() string {
	return string(e)
}
