package cache

import (
	"context"
	"strconv"
	"time"
)

// Keyspace prefixes every key written by this service.
const Keyspace = "blogosphere"

const (
	// UserTTL bounds how long a role or activation change can go unnoticed by
	// the auth middleware when it was made outside the API.
	UserTTL = 5 * time.Minute
	// PostTTL bounds single-post reads.
	PostTTL = 10 * time.Minute
)

// UserKey holds the auth principal of a user.
func UserKey(userID uint) string {
	return key("principal", userID)
}

// PostKey holds a post as loaded by ID.
func PostKey(postID uint) string {
	return key("post", postID)
}

func key(kind string, id uint) string {
	return Keyspace + ":" + kind + ":" + strconv.FormatUint(uint64(id), 10)
}

// Invalidate removes keys, ignoring errors.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
