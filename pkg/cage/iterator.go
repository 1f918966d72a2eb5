package cage

// CellIterator walks the leaf cells of a cage in skeleton order. Iterators
// are values: Next and Prev return new iterators, and walking off either
// end yields an invalid one. Clearing or rebuilding the cage invalidates
// every outstanding iterator; a stale iterator reports Valid() == false
// rather than touching freed structure.
type CellIterator struct {
	cage *BoundingCage
	ref  cellRef
}

// FirstCell returns an iterator at the lowest-index leaf cell, invalid
// for an empty cage.
func (c *BoundingCage) FirstCell() CellIterator {
	return CellIterator{cage: c, ref: c.head}
}

// LastCell returns an iterator at the highest-index leaf cell, invalid
// for an empty cage.
func (c *BoundingCage) LastCell() CellIterator {
	return CellIterator{cage: c, ref: c.tail}
}

// Valid reports whether the iterator addresses a live cell.
func (it CellIterator) Valid() bool {
	return it.Cell() != nil
}

// Cell returns the addressed cell, or nil for an invalid iterator.
func (it CellIterator) Cell() *Cell {
	if it.cage == nil {
		return nil
	}
	return it.cage.deref(it.ref)
}

// Next returns an iterator at the next leaf in ascending index order.
func (it CellIterator) Next() CellIterator {
	cl := it.Cell()
	if cl == nil {
		return CellIterator{}
	}
	return CellIterator{cage: it.cage, ref: cl.next}
}

// Prev returns an iterator at the previous leaf in descending index
// order.
func (it CellIterator) Prev() CellIterator {
	cl := it.Cell()
	if cl == nil {
		return CellIterator{}
	}
	return CellIterator{cage: it.cage, ref: cl.prev}
}

// KeyFrameIterator addresses one keyframe of the cage. Movement follows
// the leaf cells bounding the keyframe, visiting keyframes in ascending
// index order. An iterator over a detached keyframe is valid but cannot
// move. Clearing or rebuilding the cage invalidates all iterators.
type KeyFrameIterator struct {
	cage *BoundingCage
	kf   *KeyFrame
}

// FirstKeyFrame returns an iterator at the minimum-index keyframe,
// invalid for an empty cage.
func (c *BoundingCage) FirstKeyFrame() KeyFrameIterator {
	head := c.deref(c.head)
	if head == nil {
		return KeyFrameIterator{}
	}
	return KeyFrameIterator{cage: c, kf: head.left}
}

// LastKeyFrame returns an iterator at the maximum-index keyframe, invalid
// for an empty cage.
func (c *BoundingCage) LastKeyFrame() KeyFrameIterator {
	tail := c.deref(c.tail)
	if tail == nil {
		return KeyFrameIterator{}
	}
	return KeyFrameIterator{cage: c, kf: tail.right}
}

// Valid reports whether the iterator addresses a keyframe of the current
// cage generation.
func (it KeyFrameIterator) Valid() bool {
	return it.kf != nil && it.cage != nil && it.kf.gen == it.cage.gen
}

// KeyFrame returns the addressed keyframe, or nil for an invalid
// iterator.
func (it KeyFrameIterator) KeyFrame() *KeyFrame {
	if !it.Valid() {
		return nil
	}
	return it.kf
}

// Next returns an iterator at the keyframe with the next higher index,
// stepping through the cell on the keyframe's higher-index side.
func (it KeyFrameIterator) Next() KeyFrameIterator {
	if !it.Valid() {
		return KeyFrameIterator{}
	}
	cell := it.cage.deref(it.kf.cells[1])
	if cell == nil {
		return KeyFrameIterator{}
	}
	return KeyFrameIterator{cage: it.cage, kf: cell.right}
}

// Prev returns an iterator at the keyframe with the next lower index,
// stepping through the cell on the keyframe's lower-index side.
func (it KeyFrameIterator) Prev() KeyFrameIterator {
	if !it.Valid() {
		return KeyFrameIterator{}
	}
	cell := it.cage.deref(it.kf.cells[0])
	if cell == nil {
		return KeyFrameIterator{}
	}
	return KeyFrameIterator{cage: it.cage, kf: cell.left}
}
