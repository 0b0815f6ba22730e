// Package store persists team records: install credentials, the feed
// channel, and the domain blacklist.
//
// Two implementations share the Store contract: SQLiteStore for production
// and MemoryStore for tests. UpdateTeam is the read-modify-write path;
// implementations serialize it per team so concurrent settings changes
// never lose updates.
package store
