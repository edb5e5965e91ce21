package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxFieldNameLen is the longest field name journald accepts.
const MaxFieldNameLen = 64

// ValidFieldName reports whether name may be submitted by a client:
// uppercase letters, digits and underscores, starting with a letter.
// Names starting with '_' are reserved for fields the journal adds itself.
func ValidFieldName(name string) bool {
	if name == "" || len(name) > MaxFieldNameLen {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// validReadFieldName is the looser check applied to fields read back from
// the journal, which may carry trusted "_" and "__" prefixed fields.
func validReadFieldName(name string) bool {
	if name == "" || len(name) > MaxFieldNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// Encode turns an entry into one NAME=VALUE record per field. Fields with
// invalid names are dropped; the rest of the entry is still encoded.
func Encode(e *Entry) [][]byte {
	records := make([][]byte, 0, len(e.Fields))
	for _, f := range e.Fields {
		if !ValidFieldName(f.Name) {
			continue
		}
		rec := make([]byte, 0, len(f.Name)+1+len(f.Value))
		rec = append(rec, f.Name...)
		rec = append(rec, '=')
		rec = append(rec, f.Value...)
		records = append(records, rec)
	}
	return records
}

// Decode splits a record on its first '='. A record without '=' comes back
// as an unnamed value together with a *MalformedRecordError.
func Decode(record []byte) (name string, value []byte, err error) {
	i := bytes.IndexByte(record, '=')
	if i < 0 {
		return "", record, &MalformedRecordError{Record: record}
	}
	return string(record[:i]), record[i+1:], nil
}

// decodeEntry rebuilds an entry from records. Malformed records and names
// that are not valid journal field names are passed to diag and skipped.
func decodeEntry(records [][]byte, diag func(error)) *Entry {
	e := &Entry{Fields: make([]Field, 0, len(records))}
	for _, rec := range records {
		name, value, err := Decode(rec)
		if err == nil && !validReadFieldName(name) {
			err = &MalformedRecordError{Record: rec}
		}
		if err != nil {
			if diag != nil {
				diag(err)
			}
			continue
		}
		e.Fields = append(e.Fields, Field{Name: name, Value: append([]byte(nil), value...)})
	}
	return e
}

// MarshalDatagram frames records for journald's native socket protocol:
//   - NAME=value\n when the value has no newline
//   - NAME\n<8-byte little-endian length><value>\n otherwise
func MarshalDatagram(records [][]byte) []byte {
	size := 0
	for _, r := range records {
		size += len(r) + 9
	}
	buf := make([]byte, 0, size)

	for _, rec := range records {
		name, value, err := Decode(rec)
		if err != nil {
			continue
		}
		if bytes.IndexByte(value, '\n') < 0 {
			buf = append(buf, rec...)
			buf = append(buf, '\n')
			continue
		}
		buf = append(buf, name...)
		buf = append(buf, '\n')
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(value)))
		buf = append(buf, value...)
		buf = append(buf, '\n')
	}
	return buf
}

// UnmarshalDatagram parses a native protocol datagram back into records.
func UnmarshalDatagram(data []byte) ([][]byte, error) {
	var records [][]byte

	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			// Last field without trailing newline.
			records = append(records, append([]byte(nil), data...))
			break
		}
		line := data[:nl]

		if bytes.IndexByte(line, '=') >= 0 {
			records = append(records, append([]byte(nil), line...))
			data = data[nl+1:]
			continue
		}

		// Binary format: NAME\n<8-byte length><data>\n
		name := line
		data = data[nl+1:]
		if len(data) < 8 {
			return nil, fmt.Errorf("truncated length field for %s", name)
		}
		length := binary.LittleEndian.Uint64(data[:8])
		data = data[8:]
		if uint64(len(data)) < length {
			return nil, fmt.Errorf("truncated value for %s", name)
		}

		rec := make([]byte, 0, len(name)+1+int(length))
		rec = append(rec, name...)
		rec = append(rec, '=')
		rec = append(rec, data[:length]...)
		records = append(records, rec)

		data = data[length:]
		if len(data) > 0 && data[0] == '\n' {
			data = data[1:]
		}
	}

	return records, nil
}
