package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark keys
	KeyPrefixBookmark = "marky:bookmark:"
	// KeyPrefixBookmarkSet is the prefix for the per-user set of bookmark IDs
	KeyPrefixBookmarkSet = "marky:bookmarks:"
)

// BookmarkKey returns the Redis key for one of a user's bookmarks
func BookmarkKey(userID, id string) string {
	return KeyPrefixBookmark + userID + ":" + id
}

// UserBookmarksKey returns the key for the set of a user's bookmark IDs
func UserBookmarksKey(userID string) string {
	return KeyPrefixBookmarkSet + userID
}
