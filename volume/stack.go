package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Level is one resolution level of a Stack.
type Level struct {
	// Index is the position in the stack; 0 is full resolution.
	Index int
	// R is the per-axis downsampling factor relative to level 0.
	R [3]int
	// Grid supplies the level's voxels.
	Grid Grid
}

// S returns the per-axis scale 1/R.
func (l *Level) S() [3]float64 {
	return [3]float64{1 / float64(l.R[0]), 1 / float64(l.R[1]), 1 / float64(l.R[2])}
}

// Dims returns the level image size in voxels.
func (l *Level) Dims() [3]int64 { return l.Grid.Dims() }

// StackID identifies a dataset for cache key purposes. Two stacks with the
// same ID share cache entries regardless of their contents.
type StackID struct {
	Timepoint int
	Setup     int
}

func (id StackID) String() string {
	return fmt.Sprintf("t%d/s%d", id.Timepoint, id.Setup)
}

// Stack is an ordered multi-resolution pyramid, finest level first.
type Stack struct {
	id            StackID
	voxelType     VoxelType
	levels        []*Level
	sourceToWorld *mat.Dense
}

// StackOption configures NewStack.
type StackOption func(*Stack)

// WithSourceToWorld sets the 4x4 source to world transform. Default identity.
func WithSourceToWorld(m mat.Matrix) StackOption {
	return func(s *Stack) {
		s.sourceToWorld = mat.DenseCopyOf(m)
	}
}

// NewStack validates levels and returns a stack. The voxel type is fixed here
// and applies to every level.
func NewStack(id StackID, voxelType VoxelType, levels []*Level, opts ...StackOption) (*Stack, error) {
	if err := voxelType.Validate(); err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidStack)
	}
	for i, l := range levels {
		if l == nil || !l.Grid.Valid() {
			return nil, fmt.Errorf("%w: level %d has no grid", ErrInvalidStack, i)
		}
		if l.Index != i {
			return nil, fmt.Errorf("%w: level %d has index %d", ErrInvalidStack, i, l.Index)
		}
		for d := 0; d < 3; d++ {
			if l.R[d] < 1 {
				return nil, fmt.Errorf("%w: level %d has factor %v", ErrInvalidStack, i, l.R)
			}
			if i > 0 && l.R[d] < levels[i-1].R[d] {
				return nil, fmt.Errorf("%w: level %d is finer than level %d", ErrInvalidStack, i, i-1)
			}
			if l.Dims()[d] <= 0 {
				return nil, fmt.Errorf("%w: level %d is empty", ErrInvalidStack, i)
			}
		}
	}
	if levels[0].R != [3]int{1, 1, 1} {
		return nil, fmt.Errorf("%w: level 0 must be full resolution", ErrInvalidStack)
	}

	s := &Stack{
		id:            id,
		voxelType:     voxelType,
		levels:        levels,
		sourceToWorld: identity4(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if r, c := s.sourceToWorld.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("%w: source transform is %dx%d", ErrInvalidStack, r, c)
	}
	return s, nil
}

// ID returns the dataset identity.
func (s *Stack) ID() StackID { return s.id }

// VoxelType returns the voxel type shared by all levels.
func (s *Stack) VoxelType() VoxelType { return s.voxelType }

// Levels returns the levels, finest first.
func (s *Stack) Levels() []*Level { return s.levels }

// Level returns level i.
func (s *Stack) Level(i int) *Level { return s.levels[i] }

// NumLevels returns the number of levels.
func (s *Stack) NumLevels() int { return len(s.levels) }

// SourceToWorld returns the 4x4 source to world transform.
func (s *Stack) SourceToWorld() mat.Matrix { return s.sourceToWorld }

func identity4() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}
