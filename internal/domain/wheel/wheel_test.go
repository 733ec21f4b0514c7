package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorOfEveryPocket(t *testing.T) {
	counts := map[Color]int{}
	for n := Min; n <= Max; n++ {
		c := ColorOf(n)
		require.Contains(t, Colors, c, "pocket %d", n)
		counts[c]++
	}
	assert.Equal(t, Green, ColorOf(0))
	assert.Equal(t, 18, counts[Red])
	assert.Equal(t, 18, counts[Black])
	assert.Equal(t, 1, counts[Green])
	assert.Equal(t, Black, ColorOf(17))
	assert.Equal(t, Red, ColorOf(1))
	assert.Equal(t, Color(""), ColorOf(37))
}

func TestSectorsPartitionWheel(t *testing.T) {
	seen := map[int]Sector{}
	total := 0
	for _, s := range Sectors {
		for _, n := range SectorMembers(s) {
			_, dup := seen[n]
			require.False(t, dup, "pocket %d in two sectors", n)
			seen[n] = s
			total++
		}
	}
	assert.Equal(t, Size, total)
	assert.Len(t, SectorMembers(VoisinsZero), 17)
	assert.Len(t, SectorMembers(Tiers), 12)
	assert.Len(t, SectorMembers(Orphelins), 8)
	for n := Min; n <= Max; n++ {
		assert.Equal(t, seen[n], SectorOf(n))
	}
}

func TestOrderIsPermutation(t *testing.T) {
	seen := map[int]bool{}
	for _, n := range Order {
		require.True(t, Valid(n))
		seen[n] = true
	}
	assert.Len(t, seen, Size)
}

func TestDerivedClassifiers(t *testing.T) {
	assert.Equal(t, Zero, ParityOf(0))
	assert.Equal(t, Even, ParityOf(22))
	assert.Equal(t, Odd, ParityOf(17))

	assert.Equal(t, 0, DozenOf(0))
	assert.Equal(t, 1, DozenOf(12))
	assert.Equal(t, 2, DozenOf(13))
	assert.Equal(t, 3, DozenOf(36))

	assert.Equal(t, 0, ColumnOf(0))
	assert.Equal(t, 1, ColumnOf(34))
	assert.Equal(t, 2, ColumnOf(35))
	assert.Equal(t, 3, ColumnOf(36))
}

func TestNeighbors(t *testing.T) {
	assert.Equal(t, []int{26, 3, 32, 15}, Neighbors(0, 2))
	assert.Equal(t, []int{3, 0}, Neighbors(26, 1))
	assert.Nil(t, Neighbors(40, 2))
}

func TestNumbersOf(t *testing.T) {
	assert.Equal(t, []int{0}, NumbersOf(Green))
	assert.Len(t, NumbersOf(Red), 18)
}
