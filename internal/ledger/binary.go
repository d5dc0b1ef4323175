package ledger

import (
	"fmt"
	"time"

	"github.com/hupe1980/varanno/internal/binfmt"
	"github.com/hupe1980/varanno/model"
)

const (
	binaryMagic   = 0x5641524c // "VARL"
	binaryVersion = 2
)

func timeToUnix(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func unixToTime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

func writeStrings(pb *binfmt.Buffer, ss []string) {
	pb.WriteUint32(uint32(len(ss)))
	for _, s := range ss {
		pb.WriteString(s)
	}
}

func readStrings(pb *binfmt.Buffer) []string {
	n := int(pb.ReadUint32())
	if n == 0 || n > pb.Remaining() {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pb.ReadString())
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// marshalBinary encodes a ledger version.
// Payload:
//
//	ID (8 bytes)
//	CreatedAt (8 bytes) - UnixNano
//	NextSeq (8 bytes)
//	NumRuns (4 bytes)
//	Runs...
//	  ID, Annotator.Name, Annotator.Version (strings)
//	  Annotator.DataRelease (4 bytes), Annotator.Extensions (string)
//	  Scope (1 byte), Regions (strings)
//	  State (1 byte), Overwrite (1 byte)
//	  StartedAt, FinishedAt (8 bytes each) - UnixNano, 0 if unset
//	  Seq (8 bytes), Batches (4 bytes), Annotated, Skipped (8 bytes each)
//	  Parts (strings), Error (string)
func marshalBinary(st *State) ([]byte, error) {
	pb := binfmt.NewBuffer(make([]byte, 0, 64+len(st.Runs)*128))

	pb.WriteUint64(st.ID)
	pb.WriteUint64(timeToUnix(st.CreatedAt))
	pb.WriteUint64(st.NextSeq)
	pb.WriteUint32(uint32(len(st.Runs)))

	for _, r := range st.Runs {
		pb.WriteString(string(r.ID))
		pb.WriteString(r.Annotator.Name)
		pb.WriteString(r.Annotator.Version)
		pb.WriteUint32(uint32(r.Annotator.DataRelease))
		pb.WriteString(r.Annotator.Extensions)
		pb.WriteUint8(uint8(r.Scope))
		writeStrings(pb, r.Regions)
		pb.WriteUint8(uint8(r.State))
		if r.Overwrite {
			pb.WriteUint8(1)
		} else {
			pb.WriteUint8(0)
		}
		pb.WriteUint64(timeToUnix(r.StartedAt))
		pb.WriteUint64(timeToUnix(r.FinishedAt))
		pb.WriteUint64(r.Seq)
		pb.WriteUint32(uint32(r.Batches))
		pb.WriteUint64(uint64(r.Annotated))
		pb.WriteUint64(uint64(r.Skipped))
		writeStrings(pb, r.Parts)
		pb.WriteString(truncate(r.Error, 4096))
	}

	if err := pb.Err(); err != nil {
		return nil, err
	}
	return binfmt.Frame(binaryMagic, binaryVersion, pb.Bytes()), nil
}

// unmarshalBinary decodes a ledger version.
func unmarshalBinary(data []byte) (*State, error) {
	version, payload, err := binfmt.Unframe(binaryMagic, data)
	if err != nil {
		return nil, err
	}
	if version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}

	pb := binfmt.NewBuffer(payload)
	st := &State{}
	st.ID = pb.ReadUint64()
	st.CreatedAt = unixToTime(pb.ReadUint64())
	st.NextSeq = pb.ReadUint64()

	n := int(pb.ReadUint32())
	if n > pb.Remaining() {
		return nil, fmt.Errorf("%w: run count %d", binfmt.ErrCorrupt, n)
	}
	st.Runs = make([]*model.RunRecord, 0, n)
	for i := 0; i < n; i++ {
		r := &model.RunRecord{}
		r.ID = model.RunID(pb.ReadString())
		r.Annotator.Name = pb.ReadString()
		r.Annotator.Version = pb.ReadString()
		r.Annotator.DataRelease = int(pb.ReadUint32())
		r.Annotator.Extensions = pb.ReadString()
		r.Scope = model.Scope(pb.ReadUint8())
		r.Regions = readStrings(pb)
		r.State = model.RunState(pb.ReadUint8())
		r.Overwrite = pb.ReadUint8() == 1
		r.StartedAt = unixToTime(pb.ReadUint64())
		r.FinishedAt = unixToTime(pb.ReadUint64())
		r.Seq = pb.ReadUint64()
		r.Batches = int(pb.ReadUint32())
		r.Annotated = int64(pb.ReadUint64())
		r.Skipped = int64(pb.ReadUint64())
		r.Parts = readStrings(pb)
		r.Error = pb.ReadString()
		st.Runs = append(st.Runs, r)
	}

	if err := pb.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", binfmt.ErrCorrupt, err)
	}
	return st, nil
}
