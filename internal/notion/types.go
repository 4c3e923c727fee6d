// In file: internal/notion/types.go
package notion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RichText is a Notion rich text object.
type RichText struct {
	Type      string   `json:"type,omitempty"`
	PlainText string   `json:"plain_text,omitempty"`
	Text      *TextObj `json:"text,omitempty"`
}

// TextObj is the "text" payload of a rich text object.
type TextObj struct {
	Content string `json:"content"`
}

// Parent describes the parent of a page or database.
type Parent struct {
	Type       string `json:"type,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	Workspace  bool   `json:"workspace,omitempty"`
}

// SelectOption is a select, multi_select or status value.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateProperty is the value of a date property.
type DateProperty struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Property is a page property value as returned by the API.
type Property struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	Date        *DateProperty  `json:"date,omitempty"`
	Checkbox    bool           `json:"checkbox,omitempty"`
	URL         string         `json:"url,omitempty"`
	Email       string         `json:"email,omitempty"`
	PhoneNumber string         `json:"phone_number,omitempty"`
}

// Object is a page or database as returned by search and query endpoints.
type Object struct {
	Object         string              `json:"object"`
	ID             string              `json:"id"`
	CreatedTime    string              `json:"created_time,omitempty"`
	LastEditedTime string              `json:"last_edited_time,omitempty"`
	Title          []RichText          `json:"title,omitempty"`
	Properties     map[string]Property `json:"properties,omitempty"`
	URL            string              `json:"url,omitempty"`
	Parent         Parent              `json:"parent,omitempty"`
	Archived       bool                `json:"archived,omitempty"`
	// Schema holds a database's columns. Search returns databases with a property schema
	// where pages carry property values.
	Schema map[string]PropertySchema `json:"-"`
}

// UnmarshalJSON decodes pages and databases alike.
func (o *Object) UnmarshalJSON(data []byte) error {
	type plain Object
	var raw struct {
		plain
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Object(raw.plain)
	if len(raw.Properties) == 0 || string(raw.Properties) == "null" {
		return nil
	}
	if o.Object == "database" {
		return json.Unmarshal(raw.Properties, &o.Schema)
	}
	return json.Unmarshal(raw.Properties, &o.Properties)
}

// Page is an alias kept for readability at call sites that only deal with pages.
type Page = Object

// Database is a Notion database with its property schema.
type Database struct {
	Object         string                    `json:"object"`
	ID             string                    `json:"id"`
	Title          []RichText                `json:"title"`
	Properties     map[string]PropertySchema `json:"properties"`
	URL            string                    `json:"url,omitempty"`
	CreatedTime    string                    `json:"created_time,omitempty"`
	LastEditedTime string                    `json:"last_edited_time,omitempty"`
}

// PropertySchema describes one column of a database.
type PropertySchema struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Block is a content block. Only text-bearing block types and dividers are modelled.
type Block struct {
	Object      string `json:"object,omitempty"`
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`

	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	ToDo             *TextBlock `json:"to_do,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Code             *TextBlock `json:"code,omitempty"`
	Divider          *struct{}  `json:"divider,omitempty"`
}

// TextBlock is the payload shared by every text-bearing block type.
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  *bool      `json:"checked,omitempty"`
	Language string     `json:"language,omitempty"`
}

// text returns the payload matching the block's type, or nil for non-text blocks.
func (b *Block) text() *TextBlock {
	switch b.Type {
	case "paragraph":
		return b.Paragraph
	case "heading_1":
		return b.Heading1
	case "heading_2":
		return b.Heading2
	case "heading_3":
		return b.Heading3
	case "bulleted_list_item":
		return b.BulletedListItem
	case "numbered_list_item":
		return b.NumberedListItem
	case "to_do":
		return b.ToDo
	case "quote":
		return b.Quote
	case "code":
		return b.Code
	}
	return nil
}

// List is the paginated envelope used by query, search and block children endpoints.
type List[T any] struct {
	Object     string `json:"object"`
	Results    []T    `json:"results"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// GetTitle extracts the plain text title from a page or database.
func (o *Object) GetTitle() string {
	if len(o.Title) > 0 {
		return joinPlainText(o.Title)
	}
	for _, prop := range o.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return joinPlainText(prop.Title)
		}
	}
	return ""
}

// GetPropertyText renders a property value as plain text.
func (o *Object) GetPropertyText(name string) string {
	prop, ok := o.Properties[name]
	if !ok {
		return ""
	}
	return prop.PlainText()
}

// PlainText renders the property value as a human-readable string.
func (p Property) PlainText() string {
	switch p.Type {
	case "title":
		return joinPlainText(p.Title)
	case "rich_text":
		return joinPlainText(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "status":
		if p.Status != nil {
			return p.Status.Name
		}
	case "multi_select":
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", ")
	case "number":
		if p.Number != nil {
			return fmt.Sprintf("%g", *p.Number)
		}
	case "checkbox":
		return fmt.Sprintf("%v", p.Checkbox)
	case "date":
		if p.Date != nil {
			if p.Date.End != "" {
				return p.Date.Start + " → " + p.Date.End
			}
			return p.Date.Start
		}
	case "url":
		return p.URL
	case "email":
		return p.Email
	case "phone_number":
		return p.PhoneNumber
	}
	return ""
}

// Flatten returns every property of the object as plain text, keyed by property name.
func (o *Object) Flatten() map[string]string {
	out := make(map[string]string, len(o.Properties))
	for name, prop := range o.Properties {
		out[name] = prop.PlainText()
	}
	return out
}

func joinPlainText(parts []RichText) string {
	var sb strings.Builder
	for _, rt := range parts {
		if rt.PlainText != "" {
			sb.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			sb.WriteString(rt.Text.Content)
		}
	}
	return sb.String()
}
