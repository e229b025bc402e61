package query

import "encoding/binary"

// Row is one record as stored behind a recordId in the ORAM: the column
// the range query predicates on (salary in spec terms) plus the rest of
// the row's data.
type Row struct {
	ID     uint64
	Salary uint64
	Data   []byte
}

// EncodeRow lays out a Row's ORAM payload: an 8-byte salary header
// followed by the row's remaining bytes.
func EncodeRow(salary uint64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], salary)
	copy(buf[8:], data)
	return buf
}

// DecodeRow reverses EncodeRow.
func DecodeRow(id uint64, payload []byte) Row {
	if len(payload) < 8 {
		return Row{ID: id}
	}
	return Row{
		ID:     id,
		Salary: binary.BigEndian.Uint64(payload[:8]),
		Data:   payload[8:],
	}
}
