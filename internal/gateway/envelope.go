package gateway

import (
	"bytes"
	"encoding/json"
)

// items decodes either {"items":[...]} or a bare array.
type items[T any] []T

func (i *items[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*i = list
		return nil
	}

	var envelope struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	*i = envelope.Items
	return nil
}

func (i items[T]) list() []T {
	if i == nil {
		return []T{}
	}
	return []T(i)
}

// item decodes either {"item":{...}} or the bare object.
type item[T any] struct {
	value T
}

func (i *item[T]) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Item) > 0 && !bytes.Equal(envelope.Item, []byte("null")) {
		return json.Unmarshal(envelope.Item, &i.value)
	}
	return json.Unmarshal(data, &i.value)
}
