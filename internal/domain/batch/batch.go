// Package batch splits ordered item sequences into bounded transport batches.
package batch

import "fmt"

// Range is a half-open slice [Start, End) of the input, numbered by Index.
type Range struct {
	Index int
	Start int
	End   int
}

// Len returns the number of items in the range.
func (r Range) Len() int { return r.End - r.Start }

// Split cuts total items into consecutive ranges of at most size items.
// Returns nil for total <= 0. size <= 0 means a single batch.
func Split(total, size int) []Range {
	if total <= 0 {
		return nil
	}
	if size <= 0 || size > total {
		size = total
	}
	ranges := make([]Range, 0, (total+size-1)/size)
	for start, i := 0, 0; start < total; start, i = start+size, i+1 {
		end := start + size
		if end > total {
			end = total
		}
		ranges = append(ranges, Range{Index: i, Start: start, End: end})
	}
	return ranges
}

// Callback observes each committed batch. total is the number of batches in the call.
type Callback func(r Range, total int)

// Error reports a failed batch. Batches before Range.Index are committed.
type Error struct {
	Range     Range
	Total     int // number of batches in the call
	Committed int // items written before the failed batch
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch %d/%d (items %d-%d) failed after %d committed: %v",
		e.Range.Index+1, e.Total, e.Range.Start, e.Range.End-1, e.Committed, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Offset shifts the reported range by n items, for callers that upserted a suffix of a larger sequence.
func (e *Error) Offset(n int) *Error {
	out := *e
	out.Range.Start += n
	out.Range.End += n
	out.Committed += n
	return &out
}
