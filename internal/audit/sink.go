// Package audit forwards audit records to an external collector. Recording is
// fire-and-forget: a broken collector never fails or slows a request.
package audit

import (
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/hivecraft/identity-core/internal/repository/ports"
)

// Sink serializes audit entries as JSON lines into an io.Writer, normally a
// TCPWriter pointed at the collector.
type Sink struct {
	out io.Writer
}

func NewSink(out io.Writer) *Sink {
	return &Sink{out: out}
}

type record struct {
	Time string `json:"time"`
	ports.AuditEntry
}

func (s *Sink) Record(entry ports.AuditEntry) {
	buf, err := json.Marshal(record{
		Time:       time.Now().UTC().Format(time.RFC3339),
		AuditEntry: entry,
	})
	if err != nil {
		return
	}
	if _, err := s.out.Write(buf); err != nil {
		log.Printf("audit: dropped record %s/%s: %v", entry.Module, entry.Action, err)
	}
}

// LogSink is the fallback when no collector is configured: entries land in
// the process log.
type LogSink struct{}

func (LogSink) Record(entry ports.AuditEntry) {
	log.Printf("audit: actor=%s action=%s module=%s source=%s details=%s",
		entry.Actor, entry.Action, entry.Module, entry.SourceAddress, entry.Details)
}
