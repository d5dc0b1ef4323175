package snapshot

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/binfmt"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

const (
	snapshotMagic   = 0x5641534e // "VASN"
	snapshotVersion = 2
)

// Snapshot is an immutable copy of the annotations visible at creation time,
// in natural variant order.
type Snapshot struct {
	meta    model.AnnotationMetadata
	entries []model.Annotation
}

// Metadata describes the snapshot.
func (s *Snapshot) Metadata() model.AnnotationMetadata { return s.meta }

// Name returns the snapshot name.
func (s *Snapshot) Name() string { return s.meta.Name }

// CreatedAt returns the creation time.
func (s *Snapshot) CreatedAt() time.Time { return s.meta.CreatedAt }

// Len returns the number of annotations.
func (s *Snapshot) Len() int { return len(s.entries) }

// Lookup returns the frozen annotation for key.
func (s *Snapshot) Lookup(key model.VariantKey) (model.Annotation, bool) {
	i, ok := slices.BinarySearchFunc(s.entries, key, func(a model.Annotation, k model.VariantKey) int {
		return a.Key.Compare(k)
	})
	if !ok {
		return model.Annotation{}, false
	}
	a := s.entries[i]
	a.Payload = a.Payload.Clone()
	return a, true
}

// Scan yields the annotations matching pred with the projection applied.
// Yielded payloads are copies. A nil pred matches everything.
func (s *Snapshot) Scan(pred func(model.VariantKey) bool, proj query.Projection) iter.Seq[model.Annotation] {
	return func(yield func(model.Annotation) bool) {
		for _, a := range s.entries {
			if pred != nil && !pred(a.Key) {
				continue
			}
			a.Payload = proj.Apply(a.Payload)
			if !yield(a) {
				return
			}
		}
	}
}

// Count returns the number of annotations matching pred.
func (s *Snapshot) Count(pred func(model.VariantKey) bool) int {
	if pred == nil {
		return len(s.entries)
	}
	n := 0
	for _, a := range s.entries {
		if pred(a.Key) {
			n++
		}
	}
	return n
}

// build copies entries into a new snapshot.
func build(meta model.AnnotationMetadata, entries iter.Seq[model.Annotation]) *Snapshot {
	s := &Snapshot{meta: meta}
	for a := range entries {
		a.Payload = a.Payload.Clone()
		s.entries = append(s.entries, a)
	}
	slices.SortStableFunc(s.entries, func(a, b model.Annotation) int { return a.Key.Compare(b.Key) })
	s.entries = slices.CompactFunc(s.entries, func(a, b model.Annotation) bool { return a.Key == b.Key })
	return s
}

func writeIdentity(pb *binfmt.Buffer, id model.Identity) {
	pb.WriteString(id.Name)
	pb.WriteString(id.Version)
	pb.WriteUint32(uint32(id.DataRelease))
	pb.WriteString(id.Extensions)
}

func readIdentity(pb *binfmt.Buffer) model.Identity {
	return model.Identity{
		Name:        pb.ReadString(),
		Version:     pb.ReadString(),
		DataRelease: int(pb.ReadUint32()),
		Extensions:  pb.ReadString(),
	}
}

// encode writes the frame:
//
//	Name (string)
//	CreatedAt (8 bytes) - UnixNano
//	RunID (string)
//	Annotator (name, version strings + 4 byte data release + extensions string)
//	Codec (string)
//	Count (4 bytes)
//	Body (blob) - zstd compressed codec encoding of the entries
func encode(c codec.Codec, s *Snapshot) ([]byte, error) {
	raw, err := c.Marshal(s.entries)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", s.meta.Name, err)
	}
	body, err := compress.Block(raw, compress.ZSTD)
	if err != nil {
		return nil, err
	}

	pb := binfmt.NewBuffer(make([]byte, 0, len(body)+128))
	pb.WriteString(s.meta.Name)
	pb.WriteUint64(uint64(s.meta.CreatedAt.UnixNano()))
	pb.WriteString(string(s.meta.RunID))
	writeIdentity(pb, s.meta.Annotator)
	pb.WriteString(c.Name())
	pb.WriteUint32(uint32(len(s.entries)))
	pb.WriteBlob(body)
	if err := pb.Err(); err != nil {
		return nil, err
	}
	return binfmt.Frame(snapshotMagic, snapshotVersion, pb.Bytes()), nil
}

func decode(data []byte) (*Snapshot, error) {
	version, payload, err := binfmt.Unframe(snapshotMagic, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}

	pb := binfmt.NewBuffer(payload)
	s := &Snapshot{}
	s.meta.Name = pb.ReadString()
	s.meta.CreatedAt = time.Unix(0, int64(pb.ReadUint64())).UTC()
	s.meta.RunID = model.RunID(pb.ReadString())
	s.meta.Annotator = readIdentity(pb)
	codecName := pb.ReadString()
	count := int(pb.ReadUint32())
	body := pb.ReadBlob()
	if err := pb.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, codecName)
	}
	raw, err := compress.Unblock(body, compress.ZSTD)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := c.Unmarshal(raw, &s.entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(s.entries) != count {
		return nil, fmt.Errorf("%w: %d entries, header says %d", ErrCorrupt, len(s.entries), count)
	}
	return s, nil
}
