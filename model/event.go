package model

// Event names carried over the notification bus. Producers are the store
// listener and the local cache; the view-state engine and the push gateway
// are the consumers.
const (
	// EventFeatureChanged fires when the settings feature map changed.
	EventFeatureChanged = "featureChanged"
	// EventNewMessage fires once per message record appended remotely.
	EventNewMessage = "newMessage"
	// EventSectionRendered fires after the active section finished a full
	// re-render; payload is the RenderSignal pushed to connected clients.
	EventSectionRendered = "sectionRendered"
)

// RenderSignal tells a connected client that a section was re-rendered and
// carries the replacement content for its container.
type RenderSignal struct {
	Section Section `json:"section"`
	Content string  `json:"content"`
}
