// Package proc provides read-only access to the memory of the process we
// are inspecting.
//
// proc implements:
// * the Oracle interface the walkers consume (reads, dereferences, member
//   and element access, type description)
// * Target, an Oracle backed by a MemoryReader and a type layout
// * a small expression evaluator for the starting point of a walk
//
// Backends for a memory snapshot image (proc/core) and for a live process
// (proc/native) live in subpackages.
package proc
