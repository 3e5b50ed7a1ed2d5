package model

/*

Post is a piece of user generated feed content.

Id: store-generated opaque id
UserID: author's user id
Content: post body in plain text
Image: optional image url, empty when the post is text only
Timestamp: creation time in unix milliseconds
Likes: like counter, always >= 0
LikedBy: user ids that currently like this post, entries unique

Likes == len(LikedBy) must hold after every mutation. Both fields are
written back together by the like toggle, which is a read-modify-write
without any transactional primitive (see store.Adapter.TogglePostLike).

*/

type Post struct {
	Id        string   `json:"id"`
	UserID    string   `json:"userId"`
	Content   string   `json:"content"`
	Image     string   `json:"image,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Likes     int      `json:"likes"`
	LikedBy   []string `json:"likedBy"`
}

// LikedByUser returns true iff userID currently likes the post.
func (p *Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}
