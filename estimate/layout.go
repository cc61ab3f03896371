package estimate

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarch/archerr"
)

// Bound is a closed interval for one parameter. Infinite ends are allowed.
type Bound struct {
	Lower float64
	Upper float64
}

// Unbounded is the whole real line.
var Unbounded = Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}

// Contains reports whether v lies inside b.
func (b Bound) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Clip projects v into the interior of b.
func (b Bound) Clip(v float64) float64 {
	lo, hi := b.Lower, b.Upper
	if !math.IsInf(lo, 0) && !math.IsInf(hi, 0) {
		margin := 1e-6 * (hi - lo)
		lo += margin
		hi -= margin
	}
	return math.Max(lo, math.Min(hi, v))
}

// Constraints holds linear inequalities A·x >= B.
type Constraints struct {
	A [][]float64
	B []float64
}

// Len returns the number of inequalities.
func (c Constraints) Len() int {
	return len(c.B)
}

// Add appends the inequality row·x >= b.
func (c *Constraints) Add(row []float64, b float64) {
	c.A = append(c.A, row)
	c.B = append(c.B, b)
}

// Slack returns A·x - B for every row.
func (c Constraints) Slack(x []float64) []float64 {
	slack := make([]float64, len(c.B))
	for i, row := range c.A {
		s := -c.B[i]
		for j, a := range row {
			s += a * x[j]
		}
		slack[i] = s
	}
	return slack
}

// Block is a contiguous run of named parameters owned by one component.
type Block struct {
	Name        string
	Names       []string
	Bounds      []Bound
	Constraints Constraints
}

// Len returns the number of parameters in the block.
func (b Block) Len() int {
	return len(b.Names)
}

// Layout is an ordered set of blocks with offsets computed once.
type Layout struct {
	blocks  []Block
	offsets []int
	n       int
}

// NewLayout validates the blocks and computes their offsets.
func NewLayout(blocks ...Block) (*Layout, error) {
	l := &Layout{
		blocks:  make([]Block, len(blocks)),
		offsets: make([]int, len(blocks)),
	}
	seen := make(map[string]bool, len(blocks))
	for i, b := range blocks {
		if seen[b.Name] {
			return nil, archerr.Configuration("duplicate parameter block %q", b.Name)
		}
		seen[b.Name] = true
		if len(b.Bounds) != len(b.Names) {
			return nil, archerr.Configuration("block %q has %d names but %d bounds", b.Name, len(b.Names), len(b.Bounds))
		}
		for r, row := range b.Constraints.A {
			if len(row) != b.Len() {
				return nil, archerr.Configuration("block %q constraint %d has %d columns, want %d", b.Name, r, len(row), b.Len())
			}
		}
		l.blocks[i] = b
		l.offsets[i] = l.n
		l.n += b.Len()
	}
	return l, nil
}

// Len returns the total parameter count.
func (l *Layout) Len() int {
	return l.n
}

// NumBlocks returns the number of blocks.
func (l *Layout) NumBlocks() int {
	return len(l.blocks)
}

// Block returns block i and its offset.
func (l *Layout) Block(i int) (Block, int) {
	return l.blocks[i], l.offsets[i]
}

// Index returns the position of the named block, or -1.
func (l *Layout) Index(name string) int {
	for i, b := range l.blocks {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Names returns all parameter names in order.
func (l *Layout) Names() []string {
	names := make([]string, 0, l.n)
	for _, b := range l.blocks {
		names = append(names, b.Names...)
	}
	return names
}

// Bounds returns all bounds in order.
func (l *Layout) Bounds() []Bound {
	bounds := make([]Bound, 0, l.n)
	for _, b := range l.blocks {
		bounds = append(bounds, b.Bounds...)
	}
	return bounds
}

// Constraints embeds every block's inequalities in the full parameter space.
func (l *Layout) Constraints() Constraints {
	var all Constraints
	for i, b := range l.blocks {
		for r, row := range b.Constraints.A {
			full := make([]float64, l.n)
			copy(full[l.offsets[i]:], row)
			all.Add(full, b.Constraints.B[r])
		}
	}
	return all
}

// Split returns one sub-slice of x per block. The sub-slices alias x.
func (l *Layout) Split(x []float64) ([][]float64, error) {
	if len(x) != l.n {
		return nil, archerr.InvalidParameter("parameter vector has length %d, want %d", len(x), l.n)
	}
	parts := make([][]float64, len(l.blocks))
	for i, b := range l.blocks {
		parts[i] = x[l.offsets[i] : l.offsets[i]+b.Len()]
	}
	return parts, nil
}

// Join concatenates per-block values in layout order.
func (l *Layout) Join(parts ...[]float64) ([]float64, error) {
	if len(parts) != len(l.blocks) {
		return nil, archerr.InvalidParameter("got %d parameter blocks, want %d", len(parts), len(l.blocks))
	}
	x := make([]float64, 0, l.n)
	for i, p := range parts {
		if len(p) != l.blocks[i].Len() {
			return nil, archerr.InvalidParameter("block %q has %d values, want %d", l.blocks[i].Name, len(p), l.blocks[i].Len())
		}
		x = append(x, p...)
	}
	return x, nil
}

// Feasible reports whether x satisfies every bound and constraint. tol
// relaxes the constraints, not the bounds.
func (l *Layout) Feasible(x []float64, tol float64) bool {
	if len(x) != l.n {
		return false
	}
	off := 0
	for _, b := range l.blocks {
		for j, bd := range b.Bounds {
			v := x[off+j]
			if math.IsNaN(v) || !bd.Contains(v) {
				return false
			}
		}
		sub := x[off : off+b.Len()]
		for _, s := range b.Constraints.Slack(sub) {
			if s < -tol {
				return false
			}
		}
		off += b.Len()
	}
	return true
}

// Check returns an InvalidParameter error naming the first violated bound or
// constraint, or nil.
func (l *Layout) Check(x []float64) error {
	if len(x) != l.n {
		return archerr.InvalidParameter("parameter vector has length %d, want %d", len(x), l.n)
	}
	off := 0
	for _, b := range l.blocks {
		for j, bd := range b.Bounds {
			v := x[off+j]
			if math.IsNaN(v) || !bd.Contains(v) {
				return archerr.InvalidParameter("%s=%g outside [%g, %g]", b.Names[j], v, bd.Lower, bd.Upper)
			}
		}
		sub := x[off : off+b.Len()]
		for r, s := range b.Constraints.Slack(sub) {
			if s < -1e-10 {
				return archerr.InvalidParameter("%s constraint %d violated by %g", b.Name, r, -s)
			}
		}
		off += b.Len()
	}
	return nil
}

// Project clips x into the bounds, returning a new slice.
func (l *Layout) Project(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, bd := range l.Bounds() {
		v := x[i]
		if math.IsNaN(v) {
			v = 0
		}
		out[i] = bd.Clip(v)
	}
	return out
}

// Repair moves x into the feasible set. x is first clipped to the bounds;
// every block that still violates its constraints is then shrunk toward the
// matching block of anchor until its constraints hold, falling back to the
// anchor block itself. A nil anchor means the bound-clipped origin.
func (l *Layout) Repair(x, anchor []float64) []float64 {
	out := l.Project(x)
	if anchor == nil {
		anchor = make([]float64, l.n)
	}
	anchor = l.Project(anchor)

	off := 0
	for _, b := range l.blocks {
		n := b.Len()
		sub := out[off : off+n]
		if !blockFeasible(b, sub) {
			a := anchor[off : off+n]
			orig := append([]float64(nil), sub...)
			t := 1.0
			for range 60 {
				t /= 2
				for j := range sub {
					sub[j] = b.Bounds[j].Clip(a[j] + t*(orig[j]-a[j]))
				}
				if blockFeasible(b, sub) {
					break
				}
			}
			if !blockFeasible(b, sub) {
				copy(sub, a)
			}
		}
		off += n
	}
	return out
}

func blockFeasible(b Block, sub []float64) bool {
	for _, s := range b.Constraints.Slack(sub) {
		if s < 0 {
			return false
		}
	}
	return true
}

// String summarizes the block and parameter counts.
func (l *Layout) String() string {
	return fmt.Sprintf("Layout(%d blocks, %d params)", len(l.blocks), l.n)
}
