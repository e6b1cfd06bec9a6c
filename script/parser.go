// Package script turns the expansion API's response into validated,
// normalized segments with stable character identities attached.
package script

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vidgen-pipeline/types"
)

// CharacterRegistry hands out one canonical CharacterIdentity per character
// name within a single parse. The prompt kept for a character is the one
// from its first occurrence.
type CharacterRegistry struct {
	byName map[string]*types.CharacterIdentity
	order  []string
}

func NewCharacterRegistry() *CharacterRegistry {
	return &CharacterRegistry{byName: make(map[string]*types.CharacterIdentity)}
}

// Resolve derives an identity from a segment's image description. An empty
// description yields nil: the segment is faceless.
func (r *CharacterRegistry) Resolve(description string) *types.CharacterIdentity {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil
	}

	name := description
	if idx := strings.Index(description, ":"); idx >= 0 {
		name = strings.TrimSpace(description[:idx])
	}

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := &types.CharacterIdentity{
		Name:   name,
		Prompt: description,
		Seed:   CharacterSeed(name),
	}
	r.byName[name] = id
	r.order = append(r.order, name)
	return id
}

// Identities returns all registered identities in first-seen order.
func (r *CharacterRegistry) Identities() []*types.CharacterIdentity {
	out := make([]*types.CharacterIdentity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// CharacterSeed maps a character name to its deterministic 32-bit image
// seed: the SHA-256 digest of the name, read as a big unsigned integer,
// reduced mod 2^32. That equals the big-endian value of the digest's last
// four bytes.
func CharacterSeed(name string) uint32 {
	sum := sha256.Sum256([]byte(name))
	return binary.BigEndian.Uint32(sum[28:32])
}

// ParseSegments parses the expanded script text into an ordered list of
// validated segments, attaching character identities as it goes. The text
// may be wrapped in surrounding prose; the JSON array is located by
// bracket extraction if direct parsing fails.
func ParseSegments(expanded string) ([]types.ScriptSegment, *CharacterRegistry, error) {
	raw, err := extractJSONArray(expanded)
	if err != nil {
		return nil, nil, err
	}

	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("script contains no segments")
	}

	registry := NewCharacterRegistry()
	segments := make([]types.ScriptSegment, 0, len(raw))
	for i, rec := range raw {
		seg, err := validateSegment(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %d: %w", i, err)
		}
		seg.Index = i
		seg.CharacterFace = registry.Resolve(seg.ImageDescription)
		segments = append(segments, seg)
	}
	return segments, registry, nil
}

// validateSegment checks one raw record and normalizes it. Presence of
// start, end and narration is required; end must be strictly after start.
func validateSegment(rec map[string]json.RawMessage) (types.ScriptSegment, error) {
	var seg types.ScriptSegment

	for _, field := range []string{"start", "end", "narration"} {
		if _, ok := rec[field]; !ok {
			return seg, &MissingFieldError{Field: field}
		}
	}

	start, err := numberField(rec, "start")
	if err != nil {
		return seg, err
	}
	end, err := numberField(rec, "end")
	if err != nil {
		return seg, err
	}
	if end <= start {
		return seg, &InvalidTimingError{Start: start, End: end}
	}

	seg.Start = start
	seg.End = end
	seg.Narration = stringField(rec, "narration")
	seg.SceneDescription = stringField(rec, "scene")
	seg.VisualDescription = stringField(rec, "visual")
	seg.AudioDescription = stringField(rec, "audio")
	seg.ImageDescription = stringField(rec, "image")
	return seg, nil
}

// numberField reads a field that may arrive as a JSON number or a numeric
// string; the expansion API is not consistent about which.
func numberField(rec map[string]json.RawMessage, key string) (float64, error) {
	raw := rec[key]

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("field %q is not a number: %s", key, string(raw))
}

func stringField(rec map[string]json.RawMessage, key string) string {
	raw, ok := rec[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// extractJSONArray parses the response text as a JSON array of records,
// tolerating surrounding prose by retrying on the substring between the
// first '[' and the last ']'.
func extractJSONArray(text string) ([]map[string]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty script text")
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return raw, nil
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in script text")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in script text: %w", err)
	}
	return raw, nil
}
