package model

/*

Story is a short-lived piece of content.

A story is "active" iff ExpiresAt > now. Expired stories are eligible for
deletion but deletion is best-effort and lazy: the maintenance sweep removes
them in capped batches, readers simply filter them out.

*/

type Story struct {
	Id        string `json:"id"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	Media     string `json:"media,omitempty"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Active returns whether the story is still visible at nowMillis.
func (s *Story) Active(nowMillis int64) bool {
	return s.ExpiresAt > nowMillis
}
