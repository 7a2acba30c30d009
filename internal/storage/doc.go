// Package storage persists JSON documents grouped in named collections
// (users, giveaways, audit). Drivers: file (one JSON file per collection),
// sqlite and redis.
//
// A single call is atomic within the process. Nothing is atomic across
// calls: a Get followed by a Put can interleave with other writers, so
// callers that read-modify-write must serialize per key themselves.
package storage
