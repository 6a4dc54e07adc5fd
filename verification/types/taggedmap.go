package types

import (
	"encoding/asn1"
	"fmt"
	"time"
)

/*
   Authorization list entry parsing.
   Based on:
   https://source.android.com/docs/security/features/keystore/attestation#schema
   https://github.com/google/android-key-attestation/blob/master/server/src/main/java/com/google/android/attestation/AuthorizationList.java
*/

// taggedValue is one explicitly tagged authorization entry of an
// AuthorizationList sequence. The tag number identifies the field, the value
// is the inner payload of the explicit tag.
type taggedValue struct {
	tag   int
	value asn1.RawValue
}

// parseTaggedValues splits a DER encoded AuthorizationList SEQUENCE into its
// tagged entries, in input order.
func parseTaggedValues(rawList []byte) ([]taggedValue, error) {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(rawList, &seq); err != nil {
		return nil, fmt.Errorf("unmarshaling authorization list: %w", err)
	}
	if seq.Class != asn1.ClassUniversal || seq.Tag != asn1.TagSequence || !seq.IsCompound {
		return nil, fmt.Errorf("authorization list is not an ASN.1 SEQUENCE (class: %d, tag: %d)", seq.Class, seq.Tag)
	}

	var entries []taggedValue
	data := seq.Bytes
	for len(data) > 0 {
		var entry asn1.RawValue
		rest, err := asn1.Unmarshal(data, &entry)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling authorization entry: %w", err)
		}
		data = rest

		if entry.Class != asn1.ClassContextSpecific || !entry.IsCompound {
			return nil, fmt.Errorf("authorization entry is not an explicitly tagged value (class: %d, tag: %d)", entry.Class, entry.Tag)
		}

		var inner asn1.RawValue
		if _, err := asn1.Unmarshal(entry.Bytes, &inner); err != nil {
			return nil, fmt.Errorf("unmarshaling payload of authorization tag %d: %w", entry.Tag, err)
		}

		entries = append(entries, taggedValue{tag: entry.Tag, value: inner})
	}

	return entries, nil
}

// taggedMap maps authorization tags to their payloads. Tags whose position in
// the input violated ascending order are kept as a diagnostic: malformed or
// tampered records commonly manifest as unsorted tag sequences, and callers
// may want to treat that as a trust signal without failing the decode.
type taggedMap struct {
	entries       map[int]asn1.RawValue
	unorderedTags []int
}

// newTaggedMap builds a taggedMap from entries in input order. If a tag is
// smaller than its immediate predecessor, the predecessor is recorded in
// unorderedTags. A repeated tag overwrites the earlier payload; duplicate
// handling beyond that is schema policy and left to the caller.
func newTaggedMap(entries []taggedValue) taggedMap {
	m := taggedMap{entries: make(map[int]asn1.RawValue, len(entries))}

	previousTag := 0
	for _, entry := range entries {
		if entry.tag < previousTag {
			m.unorderedTags = append(m.unorderedTags, previousTag)
		}
		m.entries[entry.tag] = entry.value
		previousTag = entry.tag
	}

	return m
}

// present reports whether the tag exists in the map, regardless of payload.
func (m taggedMap) present(tag int) bool {
	_, ok := m.entries[tag]
	return ok
}

// optionalInt returns the INTEGER payload of the tag, or nil if the tag is absent.
func (m taggedMap) optionalInt(tag int) (*int, error) {
	raw, ok := m.entries[tag]
	if !ok {
		return nil, nil
	}
	var value int
	if _, err := asn1.Unmarshal(raw.FullBytes, &value); err != nil {
		return nil, fmt.Errorf("authorization tag %d: expected INTEGER payload: %w", tag, err)
	}
	return &value, nil
}

// optionalInt64 returns the INTEGER payload of the tag as a 64-bit value, or nil if the tag is absent.
func (m taggedMap) optionalInt64(tag int) (*int64, error) {
	raw, ok := m.entries[tag]
	if !ok {
		return nil, nil
	}
	var value int64
	if _, err := asn1.Unmarshal(raw.FullBytes, &value); err != nil {
		return nil, fmt.Errorf("authorization tag %d: expected INTEGER payload: %w", tag, err)
	}
	return &value, nil
}

// optionalTimeMillis reinterprets the INTEGER payload of the tag as milliseconds
// since the Unix epoch, or nil if the tag is absent.
func (m taggedMap) optionalTimeMillis(tag int) (*time.Time, error) {
	millis, err := m.optionalInt64(tag)
	if err != nil || millis == nil {
		return nil, err
	}
	value := time.UnixMilli(*millis).UTC()
	return &value, nil
}

// optionalDurationSeconds reinterprets the INTEGER payload of the tag as a
// duration in seconds, or nil if the tag is absent.
func (m taggedMap) optionalDurationSeconds(tag int) (*time.Duration, error) {
	seconds, err := m.optionalInt64(tag)
	if err != nil || seconds == nil {
		return nil, err
	}
	value := time.Duration(*seconds) * time.Second
	return &value, nil
}

// optionalBytes returns the OCTET STRING payload of the tag, or nil if the tag is absent.
func (m taggedMap) optionalBytes(tag int) ([]byte, error) {
	raw, ok := m.entries[tag]
	if !ok {
		return nil, nil
	}
	var value []byte
	if _, err := asn1.Unmarshal(raw.FullBytes, &value); err != nil {
		return nil, fmt.Errorf("authorization tag %d: expected OCTET STRING payload: %w", tag, err)
	}
	return value, nil
}

// intSet returns the SET OF INTEGER payload of the tag. An absent tag and a
// present-but-empty set both yield an empty result.
func (m taggedMap) intSet(tag int) ([]int, error) {
	raw, ok := m.entries[tag]
	if !ok {
		return nil, nil
	}
	var values []int
	if _, err := asn1.UnmarshalWithParams(raw.FullBytes, &values, "set"); err != nil {
		return nil, fmt.Errorf("authorization tag %d: expected SET OF INTEGER payload: %w", tag, err)
	}
	return values, nil
}

// nested returns the full DER encoding of the nested SEQUENCE payload of the
// tag, or nil if the tag is absent. The bytes are handed to a sub-record parser.
func (m taggedMap) nested(tag int) ([]byte, error) {
	raw, ok := m.entries[tag]
	if !ok {
		return nil, nil
	}
	if raw.Class != asn1.ClassUniversal || raw.Tag != asn1.TagSequence || !raw.IsCompound {
		return nil, fmt.Errorf("authorization tag %d: expected nested SEQUENCE payload (class: %d, tag: %d)", tag, raw.Class, raw.Tag)
	}
	return raw.FullBytes, nil
}
