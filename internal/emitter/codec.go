// Package emitter publishes detection annotations over MQTT.
//
// Payloads are MsgPack-encoded Message values; rectangles travel as
// [x, y, width, height] arrays to keep frames small at display rate.
package emitter

import (
	"github.com/vmihailenco/msgpack/v5"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// Message is the wire form of one annotation
type Message struct {
	SessionID   string   `msgpack:"session_id"`
	Seq         uint64   `msgpack:"seq"`
	TimestampMS int64    `msgpack:"ts_ms"`
	Width       int      `msgpack:"width"`
	Height      int      `msgpack:"height"`
	Faces       []Object `msgpack:"faces"`
}

// Object is one detected face and its eyes
type Object struct {
	Box  [4]int   `msgpack:"box"`
	Eyes [][4]int `msgpack:"eyes,omitempty"`
}

// NewMessage converts an annotation to its wire form
func NewMessage(a faceoverlay.Annotation) Message {
	m := Message{
		SessionID:   a.SessionID,
		Seq:         a.Seq,
		TimestampMS: a.Timestamp.UnixMilli(),
		Width:       a.Width,
		Height:      a.Height,
		Faces:       make([]Object, 0, len(a.Objects)),
	}
	for _, obj := range a.Objects {
		o := Object{Box: box(obj.Rect)}
		for _, eye := range obj.Children {
			o.Eyes = append(o.Eyes, box(eye))
		}
		m.Faces = append(m.Faces, o)
	}
	return m
}

// Encode marshals an annotation to MsgPack
func Encode(a faceoverlay.Annotation) ([]byte, error) {
	return msgpack.Marshal(NewMessage(a))
}

// Decode unmarshals a MsgPack payload produced by Encode
func Decode(data []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(data, &m)
	return m, err
}

func box(r faceoverlay.Rectangle) [4]int {
	return [4]int{r.X, r.Y, r.Width, r.Height}
}
