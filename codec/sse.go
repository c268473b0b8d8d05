package codec

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
	// DefaultEventName is used for frames without an event line.
	DefaultEventName = "message"
)

// Frame encodes a payload as a single server-sent event frame:
// "event: <name>\ndata: <json>\n\n".
func Frame(name string, payload any) ([]byte, error) {
	data, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	return FrameRaw(name, data), nil
}

// FrameRaw wraps already encoded JSON in an event frame. Embedded newlines
// are split across data lines.
func FrameRaw(name string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 24)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// FrameReader parses a text/event-stream body.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next complete frame. Comment lines, id and retry fields
// are skipped. io.EOF is returned when the stream ends, even mid-frame:
// a partial frame is never dispatched.
func (f *FrameReader) Next() (string, []byte, error) {
	var (
		name    string
		data    []byte
		hasData bool
	)
	for {
		line, err := f.r.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = DefaultEventName
			}
			return name, data, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, eventPrefix):
			name = fieldValue(line, eventPrefix)
		case strings.HasPrefix(line, dataPrefix):
			if hasData {
				data = append(data, '\n')
			}
			data = append(data, fieldValue(line, dataPrefix)...)
			hasData = true
		}
	}
}

func fieldValue(line, prefix string) string {
	v := line[len(prefix):]
	return strings.TrimPrefix(v, " ")
}
