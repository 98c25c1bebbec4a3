// Best-effort decoding of accumulated tool-call argument strings.
//
// Fragment concatenation can yield sloppy or truncated JSON. Decode
// failures are captured per parameter alongside a caller default instead
// of aborting the invocation, so tools can proceed with partial data.

package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonutil "github.com/richinex/loom/internal/json"
	"github.com/richinex/loom/llm"
)

// ParamValue holds a decoded parameter or the capture of its decode
// failure. Exactly one of Value and Err is meaningful.
type ParamValue struct {
	Value any
	Err   error
}

// Params is the decoded view of one call's arguments. Accessors return
// the caller's default together with any captured error; they never
// panic or throw.
type Params struct {
	values map[string]ParamValue
	err    error
}

// DecodeArguments converts a call's accumulated argument string into
// structured parameters. Markdown-fenced or text-embedded JSON is
// salvaged. An empty argument string decodes to empty params (valid, not
// an error).
func DecodeArguments(call llm.ToolCall) Params {
	raw := strings.TrimSpace(call.Arguments)
	if raw == "" {
		return Params{values: map[string]ParamValue{}}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		extracted, exErr := jsonutil.ExtractObject(raw)
		if exErr != nil {
			return Params{
				values: map[string]ParamValue{},
				err:    fmt.Errorf("arguments for %q: %w", call.Name, exErr),
			}
		}
		if err := json.Unmarshal([]byte(extracted), &fields); err != nil {
			return Params{
				values: map[string]ParamValue{},
				err:    fmt.Errorf("arguments for %q: %w", call.Name, err),
			}
		}
	}

	values := make(map[string]ParamValue, len(fields))
	for key, rawValue := range fields {
		var v any
		if err := json.Unmarshal(rawValue, &v); err != nil {
			values[key] = ParamValue{Err: fmt.Errorf("parameter %q: %w", key, err)}
			continue
		}
		values[key] = ParamValue{Value: v}
	}
	return Params{values: values}
}

// Err returns the whole-arguments decode failure, if any. Per-parameter
// failures surface through the accessors instead.
func (p Params) Err() error {
	return p.err
}

// Len returns the number of decoded parameters.
func (p Params) Len() int {
	return len(p.values)
}

// Has reports whether the parameter is present.
func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// String returns the string parameter at key, or def with the captured
// error when the parameter is missing, failed to decode, or has the
// wrong type.
func (p Params) String(key, def string) (string, error) {
	pv, ok := p.values[key]
	if !ok {
		return def, p.err
	}
	if pv.Err != nil {
		return def, pv.Err
	}
	s, ok := pv.Value.(string)
	if !ok {
		return def, fmt.Errorf("parameter %q: expected string, got %T", key, pv.Value)
	}
	return s, nil
}

// Float returns the numeric parameter at key, or def with the captured
// error.
func (p Params) Float(key string, def float64) (float64, error) {
	pv, ok := p.values[key]
	if !ok {
		return def, p.err
	}
	if pv.Err != nil {
		return def, pv.Err
	}
	f, ok := pv.Value.(float64)
	if !ok {
		return def, fmt.Errorf("parameter %q: expected number, got %T", key, pv.Value)
	}
	return f, nil
}

// Bool returns the boolean parameter at key, or def with the captured
// error.
func (p Params) Bool(key string, def bool) (bool, error) {
	pv, ok := p.values[key]
	if !ok {
		return def, p.err
	}
	if pv.Err != nil {
		return def, pv.Err
	}
	b, ok := pv.Value.(bool)
	if !ok {
		return def, fmt.Errorf("parameter %q: expected bool, got %T", key, pv.Value)
	}
	return b, nil
}

// Value returns the raw decoded parameter at key.
func (p Params) Value(key string) (ParamValue, bool) {
	pv, ok := p.values[key]
	return pv, ok
}
