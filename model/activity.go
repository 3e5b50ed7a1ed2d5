package model

// ActivityTypeScreenshot marks activities recorded when a user captures a
// page; the activity log doubles as the storage for screenshot events.
const ActivityTypeScreenshot = "screenshot"

/*

Activity is one entry of the append-only activity log, used both for audit
and as ad-hoc storage for screenshot events. Never mutated after creation.

*/

type Activity struct {
	Id        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data"`
	Timestamp int64             `json:"timestamp"`
	UserAgent string            `json:"userAgent"`
	URL       string            `json:"url"`
}
