package detector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// jsonFrame is one line of MediaPipe service output, also used by recorded
// sessions replayed from disk.
type jsonFrame struct {
	Hands     []jsonHand `json:"hands"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// WriteFrame writes an encoded image to the service as a 4-byte big-endian
// length followed by the bytes.
func WriteFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// DecodeHands parses one JSON line of detector output.
// Hands that do not carry all 21 landmarks are dropped, so a frame with
// only partial hands decodes to the empty "no hand" result.
func DecodeHands(line []byte) ([]HandLandmarks, error) {
	hands, _, err := DecodeFrame(line)
	return hands, err
}

// DecodeFrame is DecodeHands that also returns the line's timestamp in
// milliseconds, zero when absent.
func DecodeFrame(line []byte) ([]HandLandmarks, int64, error) {
	var frame jsonFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return nil, 0, fmt.Errorf("parse response: %w", err)
	}

	hands := make([]HandLandmarks, 0, len(frame.Hands))
	for _, h := range frame.Hands {
		if lm, ok := h.toHandLandmarks(); ok {
			hands = append(hands, lm)
		}
	}
	return hands, frame.Timestamp, nil
}

// EncodeHands renders hands in the same line format DecodeHands reads.
func EncodeHands(hands []HandLandmarks, timestamp int64) ([]byte, error) {
	frame := jsonFrame{Hands: make([]jsonHand, 0, len(hands)), Timestamp: timestamp}
	for _, h := range hands {
		frame.Hands = append(frame.Hands, jsonHand{
			Points:     h.Points[:],
			Handedness: h.Handedness,
			Score:      h.Score,
		})
	}
	return json.Marshal(frame)
}

func (h jsonHand) toHandLandmarks() (HandLandmarks, bool) {
	if len(h.Points) < NumLandmarks {
		return HandLandmarks{}, false
	}

	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)

	return lm, true
}
