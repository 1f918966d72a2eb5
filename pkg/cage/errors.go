package cage

import "errors"

// Sentinel errors returned by cage operations, wrapped with operation
// context. Match with errors.Is. Every failing operation leaves the cage
// unchanged.
var (
	// ErrIndexOutOfRange reports a skeleton index outside the valid domain
	// for the attempted operation. Splitting at an index already occupied
	// by a keyframe fails with this error: the boundary of a cell is never
	// strictly inside it.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidSkeleton reports skeleton input unusable for cage
	// construction: too few vertices, coincident consecutive vertices, or
	// a reversal sharp enough to cancel the tangent.
	ErrInvalidSkeleton = errors.New("invalid skeleton")

	// ErrInvalidTemplate reports a cross-section template that is not a
	// simple polygon with at least three vertices.
	ErrInvalidTemplate = errors.New("invalid cross-section template")

	// ErrSelfIntersecting2D reports a rejected edit that would make a
	// cross-section boundary polygon intersect itself.
	ErrSelfIntersecting2D = errors.New("self-intersecting cross-section")

	// ErrSelfIntersecting3D reports a rejected edit that would make a
	// cross-section cross a neighbouring cross-section.
	ErrSelfIntersecting3D = errors.New("cross-section crosses neighbour")

	// ErrStructuralInvariant reports an internal cell tree state that
	// should be unreachable. It indicates a bug in the cage itself, not in
	// the caller.
	ErrStructuralInvariant = errors.New("structural invariant violated")
)
