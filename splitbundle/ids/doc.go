// Package ids assigns stable numeric module identifiers for split bundle builds.
//
//	Overview
//
// A bundler numbers every module it emits. When an application ships as a
// base bundle plus feature bundles built in separate invocations, every
// module shared with the base must keep the number the base build gave it,
// otherwise a feature bundle would reference the wrong code at runtime.
// The allocators here are plugged into the bundler as its identifier source
// (see IDFunc) and coordinate through the persisted idcache.Cache.
//
//	Base variant
//
// BaseAllocator numbers the base build. Its counter starts at 0 (or just
// past the largest cached id when the cache is kept between builds) and
// every newly numbered path is written to the cache before the id is
// returned, so an interrupted build still leaves a cache that agrees with
// every id already handed out.
//
// Example, fresh cache:
//
//   - "a.js" → 0, written to the cache
//
//   - "b.js" → 1, written to the cache
//
//   - "a.js" → 0 again, nothing written
//
//     Feature variant
//
// FeatureAllocator numbers a feature build. Paths found in the cache get
// their cached id; every other path gets a feature-local id counted up from
// a reserved offset (DefaultOffset). Base ids stay below the offset and
// feature-local ids at or above it, so the two ranges cannot collide as long
// as the base build has fewer modules than the offset. The feature variant
// never writes the cache and refuses to start without a valid one.
//
// Example with offset 100 and cache {"a.js": 0, "b.js": 1}:
//
//   - "a.js" → 0 (shared with the base)
//
//   - "c.js" → 100 (feature-local)
//
//     Entry adoption
//
// A feature build may name one entry module whose number comes from a value
// the base pipeline registered in the cache under an entry key. AdoptEntry
// re-bases the counter to that value and gives the entry module that id;
// numbering then continues from there, skipping ids owned by cached paths.
// It applies to exactly one path per build and can only run once.
package ids
