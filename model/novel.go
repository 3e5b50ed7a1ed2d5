package model

// Novel is a long-form piece of writing. Immutable after creation.
type Novel struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	AuthorID  string `json:"authorId"`
	Timestamp int64  `json:"timestamp"`
}
