package target

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFieldsRoundTrip(t *testing.T) {
	in := map[string]string{
		FieldName:       "John Smith",
		FieldType:       "person",
		FieldFirstName:  "John",
		FieldLastName:   "Smith",
		FieldJobTitle:   "Software Engineer",
		FieldEnterprise: "Acme Corp",
		FieldParent:     "7",
	}

	tgt, err := FromFields(in)
	require.NoError(t, err)

	assert.Equal(t, "John Smith", tgt.Name)
	assert.Equal(t, Person, tgt.Type)
	assert.Equal(t, int64(7), tgt.ParentID)
	assert.True(t, tgt.HasParent())
	assert.Equal(t, in, tgt.Fields())
}

func TestFromFieldsMissingMandatory(t *testing.T) {
	for _, field := range []string{FieldName, FieldType} {
		t.Run(field, func(t *testing.T) {
			in := map[string]string{FieldName: "acme.test", FieldType: "domain"}
			delete(in, field)

			_, err := FromFields(in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestFromFieldsRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"empty name":   {FieldName: " ", FieldType: "host"},
		"unknown type": {FieldName: "x", FieldType: "spaceship"},
		"bad parent":   {FieldName: "x", FieldType: "host", FieldParent: "abc"},
		"zero parent":  {FieldName: "x", FieldType: "host", FieldParent: "0"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromFields(in)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestFieldsIsACopy(t *testing.T) {
	tgt, err := FromFields(map[string]string{FieldName: "a", FieldType: "email"})
	require.NoError(t, err)

	f := tgt.Fields()
	f[FieldName] = "mutated"

	v, _ := tgt.Field(FieldName)
	assert.Equal(t, "a", v)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" Company ")
	require.NoError(t, err)
	assert.Equal(t, Company, typ)

	_, err = ParseType("planet")
	assert.Error(t, err)
}

func TestWithParentAndID(t *testing.T) {
	tgt, err := FromFields(map[string]string{FieldName: "10.0.0.5", FieldType: "host"})
	require.NoError(t, err)
	assert.False(t, tgt.HasParent())

	linked := tgt.WithParent(3).WithID(9)
	assert.Equal(t, int64(3), linked.ParentID)
	assert.Equal(t, int64(9), linked.ID)
	v, _ := linked.Field(FieldParent)
	assert.Equal(t, "3", v)

	_, has := tgt.Field(FieldParent)
	assert.False(t, has, "source target must be untouched")
	assert.Equal(t, `#9 host "10.0.0.5"`, linked.String())
}
