package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Entry is one decoded log line.
type Entry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
	Error     string
}

// String renders e on a single line for the activity view.
func (e Entry) String() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if e.Level != "" {
		fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level))
	}
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Error != "" {
		b.WriteString(" (")
		b.WriteString(e.Error)
		b.WriteByte(')')
	}
	return b.String()
}

// Tail returns at most maxLines entries from the end of the log at path. A
// missing file yields no entries. Lines that are not JSON are kept verbatim
// as the message.
func Tail(path string, maxLines int) ([]Entry, error) {
	if maxLines <= 0 || path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count, next := 0, 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ring[next] = line
		next = (next + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	start := 0
	if count == maxLines {
		start = next
	}
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, decodeLine(ring[(start+i)%maxLines]))
	}
	return entries, nil
}

func decodeLine(line string) Entry {
	var raw struct {
		Time      string `json:"time"`
		Level     string `json:"level"`
		Component string `json:"component"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{Message: line}
	}
	e := Entry{Level: raw.Level, Component: raw.Component, Message: raw.Message, Error: raw.Error}
	if ts, err := time.Parse(time.RFC3339, raw.Time); err == nil {
		e.Time = ts
	}
	return e
}
