// Package wheel holds the immutable reference data of a European roulette wheel.
package wheel

import "fmt"

// Min and Max bound a valid spin.
const (
	Min = 0
	Max = 36
	// Size is the count of pockets on the wheel.
	Size = Max - Min + 1
)

type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// Colors lists colours in their fixed tie-break order.
var Colors = []Color{Red, Black, Green}

type Sector string

const (
	VoisinsZero Sector = "voisins_zero"
	Tiers       Sector = "tiers"
	Orphelins   Sector = "orphelins"
)

// Sectors lists sectors in their fixed tie-break order.
var Sectors = []Sector{VoisinsZero, Tiers, Orphelins}

type Parity string

const (
	Even Parity = "even"
	Odd  Parity = "odd"
	Zero Parity = "zero"
)

// Order is the European pocket order clockwise from zero.
var Order = [Size]int{0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10, 5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26}

var redNumbers = []int{1, 3, 5, 7, 9, 12, 14, 16, 18, 19, 21, 23, 25, 27, 30, 32, 34, 36}

var sectorMembers = map[Sector][]int{
	VoisinsZero: {22, 18, 29, 7, 28, 12, 35, 3, 26, 0, 32, 15, 19, 4, 21, 2, 25},
	Tiers:       {27, 13, 36, 11, 30, 8, 23, 10, 5, 24, 16, 33},
	Orphelins:   {17, 34, 6, 1, 20, 14, 31, 9},
}

// lookup tables, filled once at init
var (
	colorOf    [Size]Color
	sectorOf   [Size]Sector
	orderIndex [Size]int
)

func init() {
	for n := Min; n <= Max; n++ {
		colorOf[n] = Black
	}
	colorOf[0] = Green
	for _, n := range redNumbers {
		colorOf[n] = Red
	}
	for s, members := range sectorMembers {
		for _, n := range members {
			sectorOf[n] = s
		}
	}
	for i, n := range Order {
		orderIndex[n] = i
	}
}

// Valid reports whether n is a pocket on the wheel.
func Valid(n int) bool { return n >= Min && n <= Max }

// ColorOf returns the pocket colour. Out-of-range input yields "".
func ColorOf(n int) Color {
	if !Valid(n) {
		return ""
	}
	return colorOf[n]
}

// SectorOf returns the named betting sector containing n.
func SectorOf(n int) Sector {
	if !Valid(n) {
		return ""
	}
	return sectorOf[n]
}

func ParityOf(n int) Parity {
	switch {
	case n == 0:
		return Zero
	case n%2 == 0:
		return Even
	default:
		return Odd
	}
}

// DozenOf returns 1..3 for the dozen containing n, 0 for zero.
func DozenOf(n int) int {
	if n <= 0 || n > Max {
		return 0
	}
	return (n-1)/12 + 1
}

// ColumnOf returns 1..3 for the table column containing n, 0 for zero.
func ColumnOf(n int) int {
	if n <= 0 || n > Max {
		return 0
	}
	return (n-1)%3 + 1
}

// SectorMembers returns a copy of the numbers belonging to s.
func SectorMembers(s Sector) []int {
	m := sectorMembers[s]
	out := make([]int, len(m))
	copy(out, m)
	return out
}

// NumbersOf returns every pocket with colour c in ascending order.
func NumbersOf(c Color) []int {
	out := make([]int, 0, len(redNumbers))
	for n := Min; n <= Max; n++ {
		if colorOf[n] == c {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors returns the k pockets on each side of n in wheel order,
// nearest first, left side before right side.
func Neighbors(n, k int) []int {
	if !Valid(n) || k <= 0 {
		return nil
	}
	if k > Size/2 {
		k = Size / 2
	}
	idx := orderIndex[n]
	out := make([]int, 0, 2*k)
	for i := 1; i <= k; i++ {
		out = append(out, Order[(idx-i+Size)%Size])
	}
	for i := 1; i <= k; i++ {
		out = append(out, Order[(idx+i)%Size])
	}
	return out
}

// ParseColor validates a colour name read from the store.
func ParseColor(s string) (Color, error) {
	switch c := Color(s); c {
	case Red, Black, Green:
		return c, nil
	}
	return "", fmt.Errorf("unknown color %q", s)
}
