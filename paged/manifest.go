package paged

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hupe1980/blockstream/blobstore"
	"github.com/hupe1980/blockstream/internal/codec"
	"github.com/hupe1980/blockstream/volume"
)

const (
	// ManifestName is the manifest blob name below the volume prefix.
	ManifestName = "MANIFEST.json"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("paged: incompatible manifest version")
	// ErrNoManifest is returned when the prefix holds no manifest.
	ErrNoManifest = errors.New("paged: manifest not found")
	// ErrInvalidManifest is returned for manifests describing a malformed pyramid.
	ErrInvalidManifest = errors.New("paged: invalid manifest")
)

// Manifest describes a paged volume.
type Manifest struct {
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	VoxelType   string      `json:"voxel_type"`
	Compression string      `json:"compression"`
	Levels      []LevelInfo `json:"levels"`
}

// LevelInfo describes one resolution level.
type LevelInfo struct {
	Index    int      `json:"index"`
	R        [3]int   `json:"r"`
	Dims     [3]int64 `json:"dims"`
	CellDims [3]int   `json:"cell_dims"`
	Cells    int      `json:"cells"`
	Bytes    int64    `json:"bytes"` // Compressed size of all cells
}

// GridSize returns the number of cells per axis.
func (l LevelInfo) GridSize() [3]int64 {
	return volume.GridSize(l.Dims, l.CellDims)
}

func parseVoxelType(s string) (volume.VoxelType, error) {
	for _, vt := range []volume.VoxelType{volume.Uint8, volume.Uint16} {
		if vt.String() == s {
			return vt, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", volume.ErrUnsupportedVoxelType, s)
}

// Validate checks the manifest against the pyramid rules NewStack enforces.
func (m *Manifest) Validate() error {
	if m.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.Version)
	}
	if _, err := parseVoxelType(m.VoxelType); err != nil {
		return err
	}
	if _, err := codec.ParseCompression(m.Compression); err != nil {
		return err
	}
	if len(m.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidManifest)
	}
	for i, l := range m.Levels {
		if l.Index != i {
			return fmt.Errorf("%w: level %d has index %d", ErrInvalidManifest, i, l.Index)
		}
		for d := 0; d < 3; d++ {
			if l.Dims[d] <= 0 || l.CellDims[d] <= 0 || l.R[d] < 1 {
				return fmt.Errorf("%w: level %d is malformed", ErrInvalidManifest, i)
			}
		}
	}
	return nil
}

func manifestName(prefix string) string {
	return path.Join(prefix, ManifestName)
}

func cellName(prefix string, level int, pos [3]int64) string {
	return path.Join(prefix, fmt.Sprintf("L%d", level), fmt.Sprintf("%d_%d_%d", pos[2], pos[1], pos[0]))
}

// LoadManifest reads and validates the manifest below prefix.
func LoadManifest(ctx context.Context, store blobstore.Store, prefix string, c codec.Codec) (*Manifest, error) {
	if c == nil {
		c = codec.Default
	}
	data, err := blobstore.ReadAll(ctx, store, manifestName(prefix))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveManifest writes m below prefix.
func SaveManifest(ctx context.Context, store blobstore.Store, prefix string, m *Manifest, c codec.Codec) error {
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return store.Put(ctx, manifestName(prefix), data)
}
