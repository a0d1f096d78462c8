package container

import (
	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-silo/internal/binary"
	"github.com/robert-malhotra/go-silo/internal/message"
)

const recordVersion = 1

// EntityType identifies what a path names.
type EntityType uint8

const (
	EntityGroup EntityType = iota + 1
	EntityNamedType
	EntityDataset
	EntitySoftLink
)

func (t EntityType) String() string {
	switch t {
	case EntityGroup:
		return "group"
	case EntityNamedType:
		return "type"
	case EntityDataset:
		return "dataset"
	case EntitySoftLink:
		return "link"
	}
	return "unknown"
}

// record is the stored form of an entity.
type record struct {
	Type     EntityType
	Datatype *message.Datatype
	Space    *message.Dataspace
	Pipeline *message.FilterPipeline
	Target   string
}

func sealed(w *binary.Writer, buf *binary.Buffer) ([]byte, error) {
	if err := w.WriteUint32(binary.RecordSum(buf.Bytes())); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

func unseal(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.Wrap(ErrCorrupt, "record too short")
	}
	body := data[:len(data)-4]
	r := binary.NewBytesReader(data[len(data)-4:], binary.DefaultConfig())
	sum, _ := r.ReadUint32()
	if binary.RecordSum(body) != sum {
		return nil, errors.Wrap(ErrCorrupt, "metadata checksum mismatch")
	}
	return body, nil
}

func writeMessage(w *binary.Writer, m message.Message) error {
	if m == nil {
		return w.WriteBlob(nil)
	}
	raw, err := message.Encode(m)
	if err != nil {
		return err
	}
	return w.WriteBlob(raw)
}

func (rec *record) encode() ([]byte, error) {
	w, buf := binary.NewBufferWriter(binary.DefaultConfig())
	if err := w.WriteUint8(recordVersion); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(uint8(rec.Type)); err != nil {
		return nil, err
	}
	switch rec.Type {
	case EntityNamedType:
		if err := writeMessage(w, rec.Datatype); err != nil {
			return nil, err
		}
	case EntityDataset:
		if err := writeMessage(w, rec.Datatype); err != nil {
			return nil, err
		}
		if err := writeMessage(w, rec.Space); err != nil {
			return nil, err
		}
		var fp message.Message
		if rec.Pipeline != nil && len(rec.Pipeline.Filters) > 0 {
			fp = rec.Pipeline
		}
		if err := writeMessage(w, fp); err != nil {
			return nil, err
		}
	case EntitySoftLink:
		if err := w.WriteString(rec.Target); err != nil {
			return nil, err
		}
	}
	return sealed(w, buf)
}

func decodeRecord(data []byte) (*record, error) {
	body, err := unseal(data)
	if err != nil {
		return nil, err
	}
	r := binary.NewBytesReader(body, binary.DefaultConfig())
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if head[0] != recordVersion {
		return nil, errors.Wrapf(ErrCorrupt, "record version %d", head[0])
	}
	rec := &record{Type: EntityType(head[1])}
	switch rec.Type {
	case EntityGroup:
	case EntityNamedType:
		if rec.Datatype, err = readDatatype(r); err != nil {
			return nil, err
		}
	case EntityDataset:
		if rec.Datatype, err = readDatatype(r); err != nil {
			return nil, err
		}
		raw, err := r.ReadBlob()
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		m, err := message.Decode(message.TypeDataspace, raw)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		rec.Space = m.(*message.Dataspace)
		if raw, err = r.ReadBlob(); err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		if len(raw) > 0 {
			m, err := message.Decode(message.TypeFilterPipeline, raw)
			if err != nil {
				return nil, errors.Wrap(ErrCorrupt, err.Error())
			}
			rec.Pipeline = m.(*message.FilterPipeline)
		}
	case EntitySoftLink:
		if rec.Target, err = r.ReadString(); err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
	default:
		return nil, errors.Wrapf(ErrCorrupt, "entity type %d", head[1])
	}
	return rec, nil
}

func readDatatype(r *binary.Reader) (*message.Datatype, error) {
	raw, err := r.ReadBlob()
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	m, err := message.Decode(message.TypeDatatype, raw)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return m.(*message.Datatype), nil
}

// attrRecord is the stored form of an attribute.
type attrRecord struct {
	Datatype *message.Datatype
	Space    *message.Dataspace
	Data     []byte
}

func (a *attrRecord) encode() ([]byte, error) {
	w, buf := binary.NewBufferWriter(binary.DefaultConfig())
	if err := writeMessage(w, a.Datatype); err != nil {
		return nil, err
	}
	if err := writeMessage(w, a.Space); err != nil {
		return nil, err
	}
	if err := w.WriteBlob(a.Data); err != nil {
		return nil, err
	}
	return sealed(w, buf)
}

func decodeAttr(data []byte) (*attrRecord, error) {
	body, err := unseal(data)
	if err != nil {
		return nil, err
	}
	r := binary.NewBytesReader(body, binary.DefaultConfig())
	a := &attrRecord{}
	if a.Datatype, err = readDatatype(r); err != nil {
		return nil, err
	}
	raw, err := r.ReadBlob()
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	m, err := message.Decode(message.TypeDataspace, raw)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	a.Space = m.(*message.Dataspace)
	if a.Data, err = r.ReadBlob(); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return a, nil
}

// chunk layout: filter mask (4 bytes LE) followed by stored bytes.
func encodeChunk(mask uint32, data []byte) []byte {
	out := make([]byte, 4+len(data))
	out[0], out[1], out[2], out[3] = byte(mask), byte(mask>>8), byte(mask>>16), byte(mask>>24)
	copy(out[4:], data)
	return out
}

func decodeChunk(v []byte) (uint32, []byte, error) {
	if len(v) < 4 {
		return 0, nil, errors.Wrap(ErrCorrupt, "chunk too short")
	}
	mask := uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
	return mask, append([]byte(nil), v[4:]...), nil
}
