package httpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"
)

// Payload is a request body that can be rebuilt for every attempt.
type Payload interface {
	encode() (io.Reader, string, error)
}

type jsonPayload struct{ v any }

func (p jsonPayload) encode() (io.Reader, string, error) {
	data, err := json.Marshal(p.v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}

type formPayload struct{ values url.Values }

func (p formPayload) encode() (io.Reader, string, error) {
	return strings.NewReader(p.values.Encode()), "application/x-www-form-urlencoded", nil
}

type rawPayload struct {
	data        []byte
	contentType string
}

func (p rawPayload) encode() (io.Reader, string, error) {
	return bytes.NewReader(p.data), p.contentType, nil
}

func JSON(v any) Payload { return jsonPayload{v: v} }

func Form(values url.Values) Payload { return formPayload{values: values} }

func Raw(data []byte, contentType string) Payload {
	return rawPayload{data: data, contentType: contentType}
}
