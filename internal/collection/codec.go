package collection

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/checksum"
	"github.com/starford/cowbump/internal/storage"
)

// Snapshot container layout:
//
//	magic   [4]byte "CWBP"
//	version uint16  big endian
//	length  uint32  big endian, payload size, at most MaxPayload
//	payload [length]byte
//	digest  [32]byte SHA-256 of payload
//
// The payload is the uid counter followed by the entry, tag, and sequence
// stores, each in store order, with uvarint integers and uvarint-prefixed
// strings and lists.
const (
	FormatVersion uint16 = 1
	MaxPayload           = 1<<31 - 1
)

var magic = [4]byte{'C', 'W', 'B', 'P'}

const headerSize = len(magic) + 2 + 4

// Encode writes the snapshot container to w.
func (c *Collection) Encode(w io.Writer) error {
	payload := c.appendPayload(nil)
	if len(payload) > MaxPayload {
		return fmt.Errorf("collection: encode: %d bytes: %w", len(payload), apperr.ErrTooLarge)
	}
	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	header = binary.BigEndian.AppendUint16(header, FormatVersion)
	header = binary.BigEndian.AppendUint32(header, uint32(len(payload)))
	digest := checksum.Digest(payload)

	for _, part := range [][]byte{header, payload, digest[:]} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("collection: encode: %w", err)
		}
	}
	return nil
}

// Save writes the snapshot to path, replacing any previous content.
func (c *Collection) Save(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	if err := storage.WriteAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("collection: save %s: %w", path, err)
	}
	return nil
}

// SaveBackup writes the snapshot to the backup path. It is only ever
// called on explicit request.
func (c *Collection) SaveBackup(path string) error {
	return c.Save(path)
}

// Load reads a snapshot file written by Save.
func Load(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("collection: load: %w", err)
	}
	defer f.Close()
	c, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("collection: load %s: %w", path, err)
	}
	return c, nil
}

// Decode reads a snapshot container. Implication edges to missing tags are
// dropped and the path and sequence indexes are rebuilt.
func Decode(r io.Reader) (*Collection, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("collection: decode header: %w", corrupt(err))
	}
	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("collection: decode: bad magic: %w", apperr.ErrCorrupt)
	}
	if v := binary.BigEndian.Uint16(header[len(magic):]); v != FormatVersion {
		return nil, fmt.Errorf("collection: decode: version %d: %w", v, apperr.ErrUnsupportedVersion)
	}
	n := binary.BigEndian.Uint32(header[len(magic)+2:])
	if n > MaxPayload {
		return nil, fmt.Errorf("collection: decode: payload of %d bytes: %w", n, apperr.ErrTooLarge)
	}

	// ReadAll grows with the data actually present, so a lying length
	// field cannot force a huge allocation up front.
	payload, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("collection: decode payload: %w", err)
	}
	if uint32(len(payload)) != n {
		return nil, fmt.Errorf("collection: decode: payload truncated at %d of %d bytes: %w", len(payload), n, apperr.ErrCorrupt)
	}
	var digest [checksum.Size]byte
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return nil, fmt.Errorf("collection: decode digest: %w", corrupt(err))
	}
	if !checksum.Verify(payload, digest[:]) {
		return nil, fmt.Errorf("collection: decode: checksum mismatch: %w", apperr.ErrCorrupt)
	}

	c, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("collection: decode: %w", err)
	}
	c.pruneImplications()
	return c, nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", apperr.ErrCorrupt, err)
	}
	return err
}

func (c *Collection) appendPayload(b []byte) []byte {
	b = binary.AppendUvarint(b, uint64(c.uidCounter))

	b = binary.AppendUvarint(b, uint64(c.entries.Len()))
	for id, en := range c.entries.All() {
		b = binary.AppendUvarint(b, uint64(id))
		b = appendString(b, en.Path)
		b = appendUids(b, en.Tags)
	}

	b = binary.AppendUvarint(b, uint64(c.tags.Len()))
	for id, t := range c.tags.All() {
		b = binary.AppendUvarint(b, uint64(id))
		b = binary.AppendUvarint(b, uint64(len(t.Names)))
		for _, name := range t.Names {
			b = appendString(b, name)
		}
		b = appendUids(b, sortedImplies(t))
	}

	b = binary.AppendUvarint(b, uint64(c.sequences.Len()))
	for id, s := range c.sequences.All() {
		b = binary.AppendUvarint(b, uint64(id))
		b = appendString(b, s.Name)
		b = appendUids(b, s.Entries)
	}
	return b
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendUids(b []byte, ids []Uid) []byte {
	b = binary.AppendUvarint(b, uint64(len(ids)))
	for _, id := range ids {
		b = binary.AppendUvarint(b, uint64(id))
	}
	return b
}

// decoder reads payload fields; the first failure sticks.
type decoder struct {
	buf  []byte
	err  error
	seen map[Uid]struct{}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperr.ErrCorrupt)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

// count reads a list length. Every element takes at least one byte, so a
// count larger than the remaining input is corrupt.
func (d *decoder) count() int {
	v := d.uvarint()
	if v > uint64(len(d.buf)) {
		d.fail("count %d exceeds remaining %d bytes", v, len(d.buf))
		return 0
	}
	return int(v)
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) uids() []Uid {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]Uid, n)
	for i := range out {
		out[i] = Uid(d.uvarint())
	}
	return out
}

// id reads a store key, which must ascend within a store, stay below the
// counter and be unused by every store read so far.
func (d *decoder) id(counter Uid, prev *Uid, first bool) Uid {
	id := Uid(d.uvarint())
	if d.err != nil {
		return 0
	}
	if id >= counter {
		d.fail("id %d not below counter %d", id, counter)
	}
	if !first && id <= *prev {
		d.fail("id %d out of order after %d", id, *prev)
	}
	if _, dup := d.seen[id]; dup {
		d.fail("id %d used by more than one record", id)
	}
	d.seen[id] = struct{}{}
	*prev = id
	return id
}

func decodePayload(payload []byte) (*Collection, error) {
	d := &decoder{buf: payload, seen: make(map[Uid]struct{})}
	c := New()
	c.uidCounter = Uid(d.uvarint())

	var prev Uid
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		id := d.id(c.uidCounter, &prev, i == 0)
		path := d.str()
		tags := d.uids()
		if d.err != nil {
			break
		}
		if other, dup := c.byPath[path]; dup {
			d.fail("path %q shared by entries %d and %d", path, other, id)
			break
		}
		c.entries.insert(id, &Entry{Path: path, Tags: tags})
		c.byPath[path] = id
	}

	n = d.count()
	for i := 0; i < n && d.err == nil; i++ {
		id := d.id(c.uidCounter, &prev, i == 0)
		names := make([]string, d.count())
		for j := range names {
			names[j] = d.str()
		}
		implies := d.uids()
		if d.err != nil {
			break
		}
		if len(names) == 0 {
			d.fail("tag %d has no names", id)
			break
		}
		set := make(map[Uid]struct{}, len(implies))
		for _, imp := range implies {
			set[imp] = struct{}{}
		}
		c.tags.insert(id, &Tag{Names: names, Implies: set})
	}

	n = d.count()
	for i := 0; i < n && d.err == nil; i++ {
		id := d.id(c.uidCounter, &prev, i == 0)
		name := d.str()
		entries := d.uids()
		if d.err != nil {
			break
		}
		c.sequences.insert(id, &Sequence{Name: name, Entries: entries})
		for _, e := range entries {
			c.indexSequenceEntry(id, e)
		}
	}

	if d.err == nil && len(d.buf) != 0 {
		d.fail("%d trailing bytes", len(d.buf))
	}
	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}
