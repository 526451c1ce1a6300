package httpclient

import (
	"encoding/json"
	"strconv"
)

// Response is a successful reply. Data holds the decoded body when it is a JSON object,
// Text holds the raw body otherwise.
type Response struct {
	Status int
	Body   []byte
	Data   map[string]any
	Text   string
}

func parseResponse(status int, body []byte) *Response {
	r := &Response{Status: status, Body: body}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
		r.Data = obj
		return r
	}
	r.Text = string(body)
	return r
}

func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String walks nested objects along path and renders the leaf as a string.
// Missing keys and non-scalar leaves yield "".
func (r *Response) String(path ...string) string {
	var cur any = r.Data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Int returns the numeric leaf at path, or 0.
func (r *Response) Int(path ...string) int64 {
	s := r.String(path...)
	n, _ := strconv.ParseFloat(s, 64)
	return int64(n)
}
