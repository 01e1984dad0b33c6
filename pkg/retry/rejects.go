package retry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Reject - строка, не прошедшая связывание параметров
type Reject struct {
	Timestamp time.Time `json:"timestamp"`
	Line      int       `json:"line"`
	Column    int       `json:"column,omitempty"`
	Value     string    `json:"value,omitempty"`
	Target    string    `json:"target,omitempty"`
	Error     string    `json:"error"`
	Row       []string  `json:"row,omitempty"`
}

// RejectLog - журнал отклоненных строк в формате JSON lines.
// Пустой путь дает журнал, который только считает записи.
type RejectLog struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	enc   *json.Encoder
	count int
}

// OpenRejectLog открывает (или создает) журнал для дозаписи.
// Пустой path и нулевой RejectLog{} дают журнал, который только считает строки.
func OpenRejectLog(path string) (*RejectLog, error) {
	l := &RejectLog{}
	if path == "" {
		return l, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create reject log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open reject log: %w", err)
	}

	l.file = f
	l.w = bufio.NewWriter(f)
	l.enc = json.NewEncoder(l.w)
	return l, nil
}

// Add записывает строку в журнал
func (l *RejectLog) Add(r Reject) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.enc == nil {
		return nil
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if err := l.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write reject: %w", err)
	}
	return nil
}

// Count возвращает число записей, добавленных с момента открытия
func (l *RejectLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close сбрасывает буфер и закрывает файл
func (l *RejectLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	l.file, l.w, l.enc = nil, nil, nil

	if flushErr != nil {
		return fmt.Errorf("failed to flush reject log: %w", flushErr)
	}
	return closeErr
}

// ReadRejects читает журнал целиком
func ReadRejects(path string) ([]Reject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reject log: %w", err)
	}
	defer f.Close()

	var rejects []Reject
	dec := json.NewDecoder(f)
	for dec.More() {
		var r Reject
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("failed to decode reject %d: %w", len(rejects)+1, err)
		}
		rejects = append(rejects, r)
	}
	return rejects, nil
}
