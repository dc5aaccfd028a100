// Package provider talks to the streaming provider that transcodes uploaded
// videos.
//
// The Client covers the four calls the moderation pipeline needs: asset
// status, triggering a downloadable rendition, rendition status, and HEAD
// liveness probes against candidate download URLs. Provider requests share a
// rate limiter so concurrent jobs stay within upstream quotas. Responses are
// read with gjson because the provider mixes numeric and string encodings for
// progress fields and sometimes wraps payloads in a "data" envelope.
package provider
