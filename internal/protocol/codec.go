package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineSize bounds a single frame, newline included, when a Reader
// is created without an explicit limit.
const DefaultMaxLineSize = 4096

var (
	// ErrMalformedMessage is returned for a line that is not a valid frame.
	// The connection it arrived on should be closed.
	ErrMalformedMessage = errors.New("protocol: malformed message")

	// ErrLineTooLong is returned when a line exceeds the reader limit.
	// It wraps ErrMalformedMessage.
	ErrLineTooLong = fmt.Errorf("%w: line too long", ErrMalformedMessage)

	// ErrInvalidMessage is returned by Writer for a message that cannot be
	// encoded as a single frame.
	ErrInvalidMessage = errors.New("protocol: invalid message")
)

func errorf(base error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// Encode renders m as one newline terminated frame.
// Encode does not validate m; see Message.Validate.
func Encode(m Message) []byte {
	b := make([]byte, 0, len(m.Kind)+len(m.Sender)+len(m.Payload)+3)
	b = append(b, m.Kind...)
	b = append(b, ' ')
	b = append(b, m.Sender...)
	b = append(b, ' ')
	b = append(b, m.Payload...)
	return append(b, '\n')
}

// Parse decodes a single line, with or without its trailing newline.
func Parse(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\n")
	if strings.Contains(line, "\n") {
		return Message{}, errorf(ErrMalformedMessage, "embedded newline")
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return Message{}, errorf(ErrMalformedMessage, "%q has %d of 3 fields", line, len(parts))
	}
	if parts[0] == "" {
		return Message{}, errorf(ErrMalformedMessage, "%q has an empty kind", line)
	}
	return Message{Kind: Kind(parts[0]), Sender: parts[1], Payload: parts[2]}, nil
}

// Reader decodes frames from a byte stream.
type Reader struct {
	br      *bufio.Reader
	maxLine int
}

// NewReader returns a Reader that rejects lines longer than maxLine bytes.
// A non-positive maxLine selects DefaultMaxLineSize.
func NewReader(r io.Reader, maxLine int) *Reader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	return &Reader{br: bufio.NewReader(r), maxLine: maxLine}
}

// ReadMessage reads the next frame. It returns io.EOF, unwrapped, when the
// stream ends cleanly between frames.
func (r *Reader) ReadMessage() (Message, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(line)+len(chunk) > r.maxLine {
			return Message{}, ErrLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return Parse(string(line))
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return Message{}, io.EOF
			}
			// unterminated last line
			return Parse(string(line))
		default:
			return Message{}, err
		}
	}
}

// Writer encodes frames onto a byte stream. It is not safe for concurrent
// use.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer for w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage validates m and writes it as one frame.
func (w *Writer) WriteMessage(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := w.w.Write(Encode(m))
	return err
}
