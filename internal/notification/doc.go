// Package notification presents an ordered item source as linked, immutable,
// fixed-size pages ("sections") and provides a resumable reader over them.
//
// # Sections
//
// The stream of committed items is split into fixed windows of sectionSize
// notifications, identified by an inclusive 1-based range "first,last".
// Link IDs always use the full window encoding ("6,10") while a returned
// section's own ID is truncated at the high-water mark ("6,9"); the highest
// window is the current section and everything below it is archived and
// cacheable forever. Gaps below the high-water mark surface as nil items; the
// log hides nothing, gap policy belongs to the consumer.
//
// # Reader
//
// A Reader walks sections backward from "current" to its position, then
// forward, yielding a gap-free, duplicate-free, ordered stream. Its only
// state is a single integer, so persisting it is trivial; PositionStore
// offers durable, non-regressing commits for consumers that want them.
//
// The same Reader runs against a local Log or a RemoteLog speaking the HTTP
// section document, which is how downstream replicas and projections follow
// an application's log.
package notification
