package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccupancyUnknownIDIsFree(t *testing.T) {
	occ := NewOccupancy(8)
	assert.True(t, occ.IsRangeFree("R1", 0, 7))
	assert.True(t, occ.IsAllFree("R1"))
	assert.Empty(t, occ.busy, "queries must not allocate bitmaps")
}

func TestOccupancyMarkAndRevert(t *testing.T) {
	occ := NewOccupancy(8)
	occ.MarkRange("R1", 2, 4, true)

	assert.False(t, occ.IsRangeFree("R1", 0, 2))
	assert.False(t, occ.IsRangeFree("R1", 4, 7))
	assert.True(t, occ.IsRangeFree("R1", 0, 1))
	assert.True(t, occ.IsRangeFree("R1", 5, 7))

	occ.MarkRange("R1", 2, 4, true)
	assert.False(t, occ.IsRangeFree("R1", 3, 3))

	occ.MarkRange("R1", 2, 4, false)
	assert.True(t, occ.IsAllFree("R1"))
}

func TestOccupancyEntitiesAreIndependent(t *testing.T) {
	occ := NewOccupancy(4)
	occ.MarkRange("A", 0, 3, true)

	assert.False(t, occ.IsAllFree("A"))
	assert.True(t, occ.IsAllFree("B"))
}

func TestOccupancyFreeingUnknownIDDoesNotAllocate(t *testing.T) {
	occ := NewOccupancy(4)
	occ.MarkRange("A", 0, 3, false)
	assert.Empty(t, occ.busy)
	assert.Equal(t, 4, occ.Horizon())
}
