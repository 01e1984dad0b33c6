package export

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

// Stats - итоги экспорта
type Stats struct {
	RowsRead     int64         `json:"rows_read"`
	RowsWritten  int64         `json:"rows_written"`
	RowsRejected int64         `json:"rows_rejected"`
	Batches      int64         `json:"batches"`
	Retries      int64         `json:"retries"`
	UnknownTypes int64         `json:"unknown_types"`
	Duration     time.Duration `json:"duration_ns"`
	Checksum     string        `json:"checksum"`
	DryRun       bool          `json:"dry_run"`
}

func (s Stats) String() string {
	return fmt.Sprintf("read=%d written=%d rejected=%d batches=%d retries=%d unknown_types=%d checksum=%s duration=%s",
		s.RowsRead, s.RowsWritten, s.RowsRejected, s.Batches, s.Retries, s.UnknownTypes, s.Checksum, s.Duration)
}

// RowHash - xxh3 от значений строки, разделенных нулевым байтом
func RowHash(row []string) uint64 {
	h := xxh3.New()
	for i, v := range row {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.WriteString(v)
	}
	return h.Sum64()
}

// Checksum - сумма хэшей строк по модулю 2^64, не зависит от порядка записи.
// Повторяющиеся строки учитываются, в отличие от XOR.
func Checksum(rows [][]string) uint64 {
	var sum uint64
	for _, row := range rows {
		sum += RowHash(row)
	}
	return sum
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
