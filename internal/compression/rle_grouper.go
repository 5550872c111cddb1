package compression

import (
	"bufio"
	"errors"
	"io"
	"math"
)

// ByteRun represents a single run of a particular byte value.
type ByteRun struct {
	Byte byte
	// RunLength gives the number of times the byte occurs in the run. A
	// valid run is always 1 or greater.
	RunLength int
}

// invalidRun is returned by RLEGrouper.GetNextRun on error or EOF.
var invalidRun = ByteRun{0, 0}

// RLEGrouper wraps an io.Reader and returns a ByteRun upon reads. It behaves
// much like the uniq command line utility.
type RLEGrouper struct {
	rd io.ByteScanner
}

// NewRLEGrouper constructs an RLEGrouper from an io.Reader.
func NewRLEGrouper(rd io.Reader) RLEGrouper {
	return RLEGrouper{rd: bufio.NewReader(rd)}
}

// GetNextRun returns the next run of identical byte values in the stream.
// The returned error mirrors io.Reader.Read: if RunLength is non-zero, the
// error is either nil or io.EOF; if it's zero, the error is non-nil.
func (g RLEGrouper) GetNextRun() (ByteRun, error) {
	firstByte, err := g.rd.ReadByte()
	if err != nil {
		return invalidRun, err
	}

	runLength := 1
	for ; runLength < math.MaxInt; runLength++ {
		currentByte, err := g.rd.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ByteRun{Byte: firstByte, RunLength: runLength}, io.EOF
			}
			return invalidRun, err
		}

		if currentByte != firstByte {
			g.rd.UnreadByte()
			return ByteRun{Byte: firstByte, RunLength: runLength}, nil
		}
	}

	return ByteRun{Byte: firstByte, RunLength: runLength}, nil
}
