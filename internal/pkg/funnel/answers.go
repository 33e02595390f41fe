package funnel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Answer is one questionnaire response keyed by the page key.
type Answer struct {
	Key   string
	Value any
}

// Answers is an ordered answer map. It encodes to a JSON object whose keys
// keep the order they were given in, so decoding and encoding again yields
// the same document.
type Answers []Answer

// Get returns the value stored under key.
func (a Answers) Get(key string) (any, bool) {
	for _, ans := range a {
		if ans.Key == key {
			return ans.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place or appends it.
func (a *Answers) Set(key string, value any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Answer{Key: key, Value: value})
}

// Text returns the value of key as a string.
func (a Answers) Text(key string) string {
	v, _ := a.Get(key)
	return valueText(v)
}

func (a Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ans := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ans.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ans.Value)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", ans.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("answers: expected a JSON object")
	}

	out := Answers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("answers: expected an object key")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("answers: value of %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

// ParseAnswers decodes a stored answer document. Empty input yields no answers.
func ParseAnswers(raw string) (Answers, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var a Answers
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, err
	}
	return a, nil
}

// Encode returns the JSON document stored on the user.
func (a Answers) Encode() string {
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}
