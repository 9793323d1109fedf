package queue

import "encoding/json"

// Codec converts queue items to and from stored payloads.
type Codec[T any] interface {
	Encode(item T) (string, error)
	Decode(payload string) (T, error)
}

// StringCodec stores strings as-is.
type StringCodec struct{}

func (StringCodec) Encode(item string) (string, error)    { return item, nil }
func (StringCodec) Decode(payload string) (string, error) { return payload, nil }

// JSONCodec stores items as JSON documents.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(item T) (string, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONCodec[T]) Decode(payload string) (T, error) {
	var item T
	err := json.Unmarshal([]byte(payload), &item)
	return item, err
}
