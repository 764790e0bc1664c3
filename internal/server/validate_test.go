package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/mailclient"
	"github.com/bscott/mailgate/internal/resource"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name      string
		typ       string
		kind      jsonapi.Kind
		raw       string
		wantParam string
	}{
		{"empty collection", resource.TypeMessageItem, jsonapi.KindCollection, "", ""},
		{"window and sort", resource.TypeMessageItem, jsonapi.KindCollection, "start=10&limit=5&sort=-date,subject", ""},
		{"include on item", resource.TypeMessageItem, jsonapi.KindResource, "include=MessageBody", ""},
		{"folders", "MailFolder", jsonapi.KindCollection, "", ""},
		{"negative start", resource.TypeMessageItem, jsonapi.KindCollection, "start=-1", "start"},
		{"unknown include", resource.TypeMessageItem, jsonapi.KindCollection, "include=Nope", "include"},
		{"wildcard fieldset", resource.TypeMessageItem, jsonapi.KindCollection, "fields[MessageItem]=*", "fields[MessageItem]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, problems, err := ParseQuery(tt.typ, tt.kind, tt.raw)
			require.NoError(t, err)
			if tt.wantParam == "" {
				assert.Empty(t, problems)
				assert.NotNil(t, q)
				return
			}
			assert.Nil(t, q)
			require.NotEmpty(t, problems)
			assert.Equal(t, 400, problems[0].Status)
			require.NotNil(t, problems[0].AdditionalDetails)
			assert.Equal(t, tt.wantParam, problems[0].AdditionalDetails.Parameter.Name)
		})
	}
}

func TestParseQueryMalformed(t *testing.T) {
	q, problems, err := ParseQuery(resource.TypeMessageItem, jsonapi.KindCollection, "limit=%zz")
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Len(t, problems, 1)
}

func TestParseQueryUnknownRoute(t *testing.T) {
	_, _, err := ParseQuery("MailAccount", jsonapi.KindResource, "")
	assert.EqualError(t, err, "no resource route serves MailAccount")
}

func TestListOptions(t *testing.T) {
	q, problems, err := ParseQuery(resource.TypeMessageItem, jsonapi.KindCollection,
		`start=4&limit=2&sort=-date,MailFolder.name,subject&filter={"=":{"subject":"two"}}`)
	require.NoError(t, err)
	require.Empty(t, problems)

	opts, err := ListOptions(q)
	require.NoError(t, err)
	assert.Equal(t, 4, opts.Start)
	assert.Equal(t, 2, opts.Limit)
	assert.Equal(t, []mailclient.SortField{
		{Field: "date", Descending: true},
		{Field: "subject"},
	}, opts.Sort)
	assert.NotNil(t, opts.Filter)
}

func TestListOptionsDefaults(t *testing.T) {
	q, _, err := ParseQuery(resource.TypeMessageItem, jsonapi.KindCollection, "")
	require.NoError(t, err)

	opts, err := ListOptions(q)
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Start)
	assert.Empty(t, opts.Sort)
	assert.Nil(t, opts.Filter)
}
