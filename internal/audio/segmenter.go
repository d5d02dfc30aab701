package audio

import (
	"fmt"
	"time"
)

// Upload represents an audio payload received from a caller
type Upload struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Size returns the payload size in bytes
func (u Upload) Size() int {
	return len(u.Data)
}

// Segment is a contiguous byte-range slice of an upload, processed as an
// independent transcription unit. Ordinals are contiguous and 1-based.
type Segment struct {
	Data     []byte
	Filename string
	MIMEType string
	Ordinal  int
}

// Segmenter splits oversized uploads into byte-range segments. It has no
// audio-format awareness: a boundary may fall mid-frame, which is an
// accepted approximation of the duration-based splitting a decoder would do.
type Segmenter struct {
	maxSegmentBytes int
	durationHint    time.Duration // informational only, no decoding happens
}

// NewSegmenter creates a new segmenter. maxSegmentBytes is the size
// threshold above which an upload gets split.
func NewSegmenter(maxSegmentBytes int, durationHint time.Duration) *Segmenter {
	return &Segmenter{
		maxSegmentBytes: maxSegmentBytes,
		durationHint:    durationHint,
	}
}

// Split returns the ordered segments covering the whole upload. Uploads
// below the size threshold come back as a single segment wrapping the
// original payload. The result is never empty and segment byte ranges are
// contiguous, non-overlapping and cover the payload exactly.
func (s *Segmenter) Split(u Upload) []Segment {
	total := len(u.Data)
	if total < s.maxSegmentBytes || s.maxSegmentBytes <= 0 {
		return []Segment{{
			Data:     u.Data,
			Filename: u.Filename,
			MIMEType: u.MIMEType,
			Ordinal:  1,
		}}
	}

	count := (total + s.maxSegmentBytes - 1) / s.maxSegmentBytes
	size := (total + count - 1) / count

	segments := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > total {
			end = total
		}
		segments = append(segments, Segment{
			Data:     u.Data[start:end],
			Filename: fmt.Sprintf("segment-%d-%s", i+1, u.Filename),
			MIMEType: u.MIMEType,
			Ordinal:  i + 1,
		})
	}

	return segments
}
