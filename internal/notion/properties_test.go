package notion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProperties(t *testing.T) {
	schema := map[string]PropertySchema{
		"Name":     {Type: "title"},
		"Notes":    {Type: "rich_text"},
		"Estimate": {Type: "number"},
		"Priority": {Type: "select"},
		"Status":   {Type: "status"},
		"Due":      {Type: "date"},
		"Done":     {Type: "checkbox"},
		"Link":     {Type: "url"},
		"Assignee": {Type: "people"},
	}

	out, err := EncodeProperties(schema, map[string]any{
		"Name":     "Buy milk",
		"Estimate": "2.5",
		"priority": "High",
		"Status":   "In progress",
		"Due":      "2024-05-01",
		"Done":     "true",
		"Link":     nil,
		"Assignee": map[string]any{"people": []any{map[string]any{"id": "u1"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.5, out["Estimate"].(map[string]any)["number"])
	assert.Equal(t, map[string]any{"name": "High"}, out["Priority"].(map[string]any)["select"])
	assert.Equal(t, map[string]any{"name": "In progress"}, out["Status"].(map[string]any)["status"])
	assert.Equal(t, map[string]any{"start": "2024-05-01"}, out["Due"].(map[string]any)["date"])
	assert.Equal(t, true, out["Done"].(map[string]any)["checkbox"])
	assert.Nil(t, out["Link"].(map[string]any)["url"])
	assert.Contains(t, out["Assignee"].(map[string]any), "people")
}

func TestEncodePropertiesRejects(t *testing.T) {
	schema := map[string]PropertySchema{"Estimate": {Type: "number"}, "Assignee": {Type: "people"}}

	tests := []struct {
		name   string
		values map[string]any
		want   string
	}{
		{"unknown property", map[string]any{"Colour": "red"}, "Colour is not a property that exists"},
		{"bad number", map[string]any{"Estimate": "lots"}, "expected a number"},
		{"unsupported plain value", map[string]any{"Assignee": "bob"}, "raw Notion payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeProperties(schema, tt.values)
			var e *RemoteValidationError
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Message, tt.want)
		})
	}
}

func TestPropertyPlainText(t *testing.T) {
	n := 3.0
	page := &Object{
		Properties: map[string]Property{
			"Name":  {Type: "title", Title: []RichText{{PlainText: "Test Page"}}},
			"Tags":  {Type: "multi_select", MultiSelect: []SelectOption{{Name: "a"}, {Name: "b"}}},
			"Count": {Type: "number", Number: &n},
			"Due":   {Type: "date", Date: &DateProperty{Start: "2024-01-01"}},
		},
	}
	assert.Equal(t, "Test Page", page.GetTitle())
	assert.Equal(t, "a, b", page.GetPropertyText("Tags"))
	assert.Equal(t, "3", page.GetPropertyText("Count"))
	assert.Equal(t, "2024-01-01", page.GetPropertyText("Due"))
	assert.Equal(t, "", page.GetPropertyText("Missing"))
	assert.Len(t, page.Flatten(), 4)
}

func TestDecodeSearchResultsWithDatabases(t *testing.T) {
	raw := `{"object":"list","has_more":false,"results":[
		{"object":"database","id":"db1","title":[{"plain_text":"Tasks"}],
		 "properties":{"Name":{"id":"title","name":"Name","type":"title","title":{}},
		               "Estimate":{"id":"e","name":"Estimate","type":"number","number":{"format":"number"}},
		               "Done":{"id":"d","name":"Done","type":"checkbox","checkbox":{}}}},
		{"object":"page","id":"p1",
		 "properties":{"Name":{"id":"title","type":"title","title":[{"plain_text":"Buy milk"}]},
		               "Done":{"id":"d","type":"checkbox","checkbox":true}}}]}`

	var res SearchResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	require.Len(t, res.Results, 2)

	db := res.Results[0]
	assert.Equal(t, "Tasks", db.GetTitle())
	assert.Empty(t, db.Properties)
	assert.Equal(t, "number", db.Schema["Estimate"].Type)
	assert.Equal(t, "checkbox", db.Schema["Done"].Type)

	page := res.Results[1]
	assert.Equal(t, "Buy milk", page.GetTitle())
	assert.Equal(t, "true", page.GetPropertyText("Done"))
	assert.Nil(t, page.Schema)
}
