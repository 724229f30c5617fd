// Package target defines discovered entities and their field vocabulary.
package target

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is the kind of entity a target represents.
type Type string

const (
	Company Type = "company"
	Person  Type = "person"
	Domain  Type = "domain"
	Host    Type = "host"
	Service Type = "service"
	Email   Type = "email"
)

var knownTypes = []Type{Company, Person, Domain, Host, Service, Email}

// Types returns every known target type.
func Types() []Type {
	out := make([]Type, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// ParseType maps a case-insensitive name to a Type.
func ParseType(s string) (Type, error) {
	want := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range knownTypes {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

func (t Type) String() string { return string(t) }

// Field names shared by modules and storage.
const (
	FieldName       = "name"
	FieldType       = "type"
	FieldParent     = "parent"
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldJobTitle   = "job_title"
	FieldEnterprise = "enterprise"
	FieldAddress    = "address"
	FieldRecord     = "record"
	FieldHost       = "host"
	FieldPort       = "port"
)

var mandatory = []string{FieldName, FieldType}

// ValidationError reports a missing or malformed mandatory field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid target field %q: %s", e.Field, e.Reason)
}

// Target is a discovered or operator-supplied entity. ParentID is a storage key of the
// target this one was derived from; zero means no parent.
type Target struct {
	ID       int64
	Name     string
	Type     Type
	ParentID int64
	fields   map[string]string
}

// FromFields builds a Target from a raw field mapping. name and type are mandatory;
// parent, when present, must be a positive integer id.
func FromFields(fields map[string]string) (Target, error) {
	for _, key := range mandatory {
		v, ok := fields[key]
		if !ok {
			return Target{}, &ValidationError{Field: key, Reason: "missing"}
		}
		if strings.TrimSpace(v) == "" {
			return Target{}, &ValidationError{Field: key, Reason: "empty"}
		}
	}
	typ, err := ParseType(fields[FieldType])
	if err != nil {
		return Target{}, &ValidationError{Field: FieldType, Reason: err.Error()}
	}

	t := Target{
		Name:   fields[FieldName],
		Type:   typ,
		fields: make(map[string]string, len(fields)),
	}
	for k, v := range fields {
		t.fields[k] = v
	}
	if raw, ok := fields[FieldParent]; ok && raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Target{}, &ValidationError{Field: FieldParent, Reason: "not a target id"}
		}
		t.ParentID = id
	}
	return t, nil
}

// Field returns one field value.
func (t Target) Field(key string) (string, bool) {
	v, ok := t.fields[key]
	return v, ok
}

// Fields returns a copy of the field mapping.
func (t Target) Fields() map[string]string {
	out := make(map[string]string, len(t.fields))
	for k, v := range t.fields {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (t Target) Keys() []string {
	keys := make([]string, 0, len(t.fields))
	for k := range t.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t Target) HasParent() bool { return t.ParentID != 0 }

// WithID returns a copy carrying the storage id.
func (t Target) WithID(id int64) Target {
	t.fields = t.Fields()
	t.ID = id
	return t
}

// WithParent returns a copy linked to the target with the given id.
func (t Target) WithParent(id int64) Target {
	t.fields = t.Fields()
	t.ParentID = id
	if id == 0 {
		delete(t.fields, FieldParent)
	} else {
		t.fields[FieldParent] = strconv.FormatInt(id, 10)
	}
	return t
}

func (t Target) String() string {
	if t.ID == 0 {
		return fmt.Sprintf("%s %q", t.Type, t.Name)
	}
	return fmt.Sprintf("#%d %s %q", t.ID, t.Type, t.Name)
}
