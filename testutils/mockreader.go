package testutils

import (
	"io"
)

// MockReader is an io.Reader that yields copies of the Content byte slice
// until Length bytes have been produced. It stands in for large request
// bodies in tests without allocating them up front.
type MockReader struct {
	Pos     int
	Length  int
	Content []byte
	next    []byte
}

// Read fills p with whole copies of Content; the last partial copy is
// dropped, so the total produced is Length rounded down to a multiple of
// len(Content).
func (m *MockReader) Read(p []byte) (n int, err error) {
	if m.Content == nil {
		m.Content = []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	}

	if m.Pos >= m.Length {
		err = io.EOF
		return
	}

	for {
		if m.Pos+len(m.Content) > m.Length {
			err = io.EOF
			return
		}

		if len(m.next) == 0 {
			m.next = m.Content
		}

		c := copy(p[n:], m.next)
		n += c
		m.Pos += c
		m.next = m.next[c:]

		if n == len(p) {
			break
		}
	}

	return
}
