// Package engine runs the render pipeline: a pool of started render
// engines, each owned by one dispatch loop that pulls futures from the
// shared render queue.
//
// Files:
//   - dispatcher.go: the per-engine dispatch loop
//   - pool.go: engine creation, loop supervision and teardown
//   - safegroup.go: panic-safe errgroup
//   - factory.go: default dependency construction
package engine
