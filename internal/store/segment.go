package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/varanno/blobstore"
	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/internal/binfmt"
	"github.com/hupe1980/varanno/internal/compress"
	"github.com/hupe1980/varanno/model"
)

const (
	segmentMagic   = 0x56415347 // "VASG"
	segmentVersion = 1
)

// record is one (key, payload) pair of a segment.
type record struct {
	Key     model.VariantKey `json:"k"`
	Payload *model.Payload   `json:"p"`
}

// Segment is a decoded checkpoint of one run.
type Segment struct {
	Run     model.RunID
	Part    int
	Records []record
}

// RunPrefix returns the blob prefix holding the segments of run.
func RunPrefix(id model.RunID) string {
	return "runs/" + string(id) + "/"
}

// PartName returns the blob name of a run segment.
func PartName(id model.RunID, part int) string {
	return fmt.Sprintf("%spart-%06d.seg", RunPrefix(id), part)
}

// encodeSegment writes the frame:
//
//	Run (string)
//	Part (4 bytes)
//	Codec (string)
//	Compression (1 byte)
//	Count (4 bytes)
//	Body (blob) - compressed codec encoding of the records
func encodeSegment(c codec.Codec, ct compress.Type, seg Segment) ([]byte, error) {
	raw, err := c.Marshal(seg.Records)
	if err != nil {
		return nil, fmt.Errorf("store: encode segment: %w", err)
	}
	body, err := compress.Block(raw, ct)
	if err != nil {
		return nil, err
	}

	pb := binfmt.NewBuffer(make([]byte, 0, len(body)+64))
	pb.WriteString(string(seg.Run))
	pb.WriteUint32(uint32(seg.Part))
	pb.WriteString(c.Name())
	pb.WriteUint8(uint8(ct))
	pb.WriteUint32(uint32(len(seg.Records)))
	pb.WriteBlob(body)
	if err := pb.Err(); err != nil {
		return nil, err
	}
	return binfmt.Frame(segmentMagic, segmentVersion, pb.Bytes()), nil
}

func decodeSegment(data []byte) (Segment, error) {
	version, payload, err := binfmt.Unframe(segmentMagic, data)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if version != segmentVersion {
		return Segment{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}

	pb := binfmt.NewBuffer(payload)
	seg := Segment{
		Run:  model.RunID(pb.ReadString()),
		Part: int(pb.ReadUint32()),
	}
	codecName := pb.ReadString()
	ct := compress.Type(pb.ReadUint8())
	count := int(pb.ReadUint32())
	body := pb.ReadBlob()
	if err := pb.Err(); err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return Segment{}, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, codecName)
	}
	raw, err := compress.Unblock(body, ct)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := c.Unmarshal(raw, &seg.Records); err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(seg.Records) != count {
		return Segment{}, fmt.Errorf("%w: %d records, header says %d", ErrCorrupt, len(seg.Records), count)
	}
	return seg, nil
}

// Checkpoint writes the records put since the last checkpoint as the run's
// next segment and returns its blob name. It returns "" when nothing is
// pending.
func (s *Store) Checkpoint(ctx context.Context, id model.RunID) (string, error) {
	rs, ok := s.run(id)
	if !ok || rs.State() != model.RunRunning {
		return "", fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.pending) == 0 {
		return "", nil
	}

	part := rs.lastPart + 1
	data, err := encodeSegment(s.codec, s.compression, Segment{Run: id, Part: part, Records: rs.pending})
	if err != nil {
		return "", err
	}
	name := PartName(id, part)
	if err := s.resources.AcquireIO(ctx, len(data)); err != nil {
		return "", err
	}
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("store: write %s: %w", name, err)
	}

	rs.lastPart = part
	rs.parts = append(rs.parts, name)
	rs.pending = nil
	return name, nil
}

// Parts returns the segments written for run so far.
func (s *Store) Parts(id model.RunID) []string {
	rs, ok := s.run(id)
	if !ok {
		return nil
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return slices.Clone(rs.parts)
}

func (s *Store) deleteSegments(ctx context.Context, id model.RunID) error {
	names, err := s.blobs.List(ctx, RunPrefix(id))
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := s.blobs.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteSegments removes every segment of a run that the store does not
// track, e.g. leftovers of a run interrupted by a crash.
func (s *Store) DeleteSegments(ctx context.Context, id model.RunID) error {
	return s.deleteSegments(ctx, id)
}

// Load replays the segments of committed runs in commit order. Records of
// other runs are ignored.
func (s *Store) Load(ctx context.Context, runs []*model.RunRecord) error {
	committed := slices.DeleteFunc(slices.Clone(runs), func(r *model.RunRecord) bool {
		return r.State != model.RunCommitted
	})
	slices.SortFunc(committed, func(a, b *model.RunRecord) int { return cmp.Compare(a.Seq, b.Seq) })

	for _, r := range committed {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.replay(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) replay(ctx context.Context, r *model.RunRecord) error {
	rs := newRunState(r.ID, model.RunCommitted)
	rs.seq.Store(r.Seq)

	s.runsMu.Lock()
	if _, ok := s.runs[r.ID]; ok {
		s.runsMu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunExists, r.ID)
	}
	s.runs[r.ID] = rs
	s.runsMu.Unlock()

	for _, name := range r.Parts {
		data, err := blobstore.ReadAll(ctx, s.blobs, name)
		if err != nil {
			return fmt.Errorf("%w: run %s: %w", ErrCorrupt, r.ID, err)
		}
		seg, err := decodeSegment(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if seg.Run != r.ID {
			return fmt.Errorf("%w: %s belongs to run %s", ErrCorrupt, name, seg.Run)
		}

		s.writeMu.Lock()
		for _, rec := range seg.Records {
			e := s.getOrCreate(rec.Key)
			e.upsert(rs, rec.Payload)
			rs.rows.Add(e.row)
		}
		s.writeMu.Unlock()

		rs.lastPart = seg.Part
		rs.parts = append(rs.parts, name)
	}
	return nil
}
