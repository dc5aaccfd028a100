// Package content persists the posts and videos whose moderation flags the
// pipeline writes.
//
// Only the verdict columns (videos.url, videos.flagged, videos.moderated_at
// and posts.flagged) are mutated by the pipeline. Flags move from false to
// true; ClearVideoFlag is the single operator override that resets them.
package content
