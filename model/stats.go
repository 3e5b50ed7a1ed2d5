package model

// UsageStats is a point-in-time count of every collection, assembled from
// parallel one-shot reads. Counts may be mutually inconsistent since no
// cross-collection ordering guarantee exists.
type UsageStats struct {
	TotalMessages int   `json:"totalMessages"`
	TotalPosts    int   `json:"totalPosts"`
	TotalStories  int   `json:"totalStories"`
	TotalNovels   int   `json:"totalNovels"`
	TotalUsers    int   `json:"totalUsers"`
	LastUpdated   int64 `json:"lastUpdated"`
}
