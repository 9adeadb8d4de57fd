package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/igs-portal/geoimport/internal/record"
)

type geojsonSource struct {
	features []json.RawMessage
	columns  []string
	idx      int
	cur      record.RawRecord
	curErr   error
}

type geojsonFeature struct {
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// openGeoJSON parses a FeatureCollection. Feature properties become
// raw records; feature geometry is carried through as an opaque raw
// GeoJSON object, never interpreted here — the storage layer accepts
// it as-is.
func openGeoJSON(path string) (Source, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}

	var collection struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, nil, fmt.Errorf("parse GeoJSON: %w", err)
	}
	if !strings.EqualFold(collection.Type, "FeatureCollection") {
		return nil, nil, fmt.Errorf("parse GeoJSON: document type %q is not a FeatureCollection", collection.Type)
	}

	s := &geojsonSource{features: collection.Features}

	// Column hints come from the first decodable feature.
	for _, raw := range s.features {
		if names, _, _, err := decodeFeature(raw); err == nil {
			s.columns = names
			break
		}
	}
	return s, nil, nil
}

func (s *geojsonSource) Next() bool {
	if s.idx >= len(s.features) {
		return false
	}

	raw := s.features[s.idx]
	s.idx++

	names, values, geom, err := decodeFeature(raw)
	if err != nil {
		s.cur, s.curErr = record.RawRecord{}, fmt.Errorf("parse feature: %w", err)
		return true
	}

	rec := record.New(names, values)
	rec.Geometry = geom
	s.cur, s.curErr = rec, nil
	return true
}

func (s *geojsonSource) Record() (record.RawRecord, error) { return s.cur, s.curErr }

func (s *geojsonSource) Columns() []string { return s.columns }

func (s *geojsonSource) Close() error { return nil }

// decodeFeature unpacks one feature: property names in document order,
// typed property values, and the raw geometry object (nil when the
// feature has none).
func decodeFeature(raw json.RawMessage) ([]string, map[string]record.Value, json.RawMessage, error) {
	var feat geojsonFeature
	if err := json.Unmarshal(raw, &feat); err != nil {
		return nil, nil, nil, err
	}

	names, values, err := decodeProperties(feat.Properties)
	if err != nil {
		return nil, nil, nil, err
	}

	geom := feat.Geometry
	if isJSONNull(geom) {
		geom = nil
	}
	return names, values, geom, nil
}

// decodeProperties walks the properties object token by token so the
// source field order survives; encoding/json maps would scramble it.
func decodeProperties(raw json.RawMessage) ([]string, map[string]record.Value, error) {
	values := make(map[string]record.Value)
	if isJSONNull(raw) {
		return nil, values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("properties is not an object")
	}

	var names []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}

		names = append(names, key)
		values[key] = jsonScalar(v)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return names, values, nil
}

// jsonScalar converts a decoded JSON value to a record scalar. Nested
// objects and arrays keep their JSON text form; the mapper treats them
// as plain text attributes.
func jsonScalar(v any) record.Value {
	switch t := v.(type) {
	case nil:
		return record.Null()
	case string:
		return record.Text(t)
	case bool:
		return record.Bool(t)
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return record.Int(i)
			}
		}
		if f, err := t.Float64(); err == nil {
			return record.Float(f)
		}
		return record.Text(s)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return record.Null()
		}
		return record.Text(string(encoded))
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
