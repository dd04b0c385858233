//go:build !cgo

package chunk

// syntacticBoundaries requires tree-sitter, which needs CGO. Without it
// every file takes the window fallback; indexing still works, only the
// fragment boundaries are coarser.
func syntacticBoundaries(_ string, _ []byte, _ Language) []boundary {
	return nil
}
