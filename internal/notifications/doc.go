// Package notifications alerts operators about moderation outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// workflow code can notify unconditionally. The flagged and aborted switches
// in the [notifications] section silence individual event kinds.
package notifications
