// Package mappingedit models the per-format mapping form of a property or
// feature type and turns field edits into mapping change payloads.
package mappingedit

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/agentic-research/wfsproxy-manager/api"
)

const (
	MimeHTML = "text/html"
	// NameTemplateID is the default name of a feature type in HTML output.
	NameTemplateID = "{{id}}"

	TypeString   = "STRING"
	TypeNumber   = "NUMBER"
	TypeID       = "ID"
	TypeGeometry = "GEOMETRY"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrReadOnly     = errors.New("field is read-only")
	ErrInvalidValue = errors.New("invalid value")
)

// Field names a form input. Values match the TargetMapping JSON keys.
type Field string

const (
	FieldEnabled          Field = "enabled"
	FieldName             Field = "name"
	FieldType             Field = "type"
	FieldShowInCollection Field = "showInCollection"
	FieldItemType         Field = "itemType"
	FieldItemProp         Field = "itemProp"
)

// Option is one choice of a select control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control describes one visible input of the form.
type Control struct {
	Field    Field    `json:"field"`
	Label    string   `json:"label"`
	Toggle   bool     `json:"toggle,omitempty"`
	Options  []Option `json:"options,omitempty"`
	ReadOnly bool     `json:"readOnly,omitempty"`
}

// Form is the edit state of one mime type of one mapping.
type Form struct {
	MimeType      string            `json:"mimeType"`
	IsFeatureType bool              `json:"isFeatureType"`
	State         api.TargetMapping `json:"state"`
}

// NewForm starts a form from the first target mapping of a mime type.
func NewForm(mimeType string, m api.TargetMapping, isFeatureType bool) *Form {
	if m.Name == "" && isFeatureType && mimeType == MimeHTML {
		m.Name = NameTemplateID
	}
	return &Form{MimeType: mimeType, IsFeatureType: isFeatureType, State: m}
}

// Collapsed reports whether the body of the form is hidden.
func (f *Form) Collapsed() bool {
	return !f.State.Enabled
}

// fixedType reports whether the property type is derived from the schema.
func (f *Form) fixedType() bool {
	return f.State.Type == TypeID || f.State.Type == TypeGeometry
}

// Controls returns the visible inputs. Body controls are omitted while the
// form is collapsed.
func (f *Form) Controls() []Control {
	var out []Control
	if !f.IsFeatureType {
		out = append(out, Control{Field: FieldEnabled, Label: f.MimeType, Toggle: true})
	}
	if f.Collapsed() {
		return out
	}
	if !f.IsFeatureType || f.MimeType == MimeHTML {
		out = append(out, Control{Field: FieldName, Label: "Name"})
	}
	if f.IsFeatureType {
		return append(out, Control{Field: FieldItemType, Label: "LD Type"})
	}
	out = append(out, Control{Field: FieldItemProp, Label: "LD Type"})
	if f.fixedType() {
		out = append(out, Control{
			Field:    FieldType,
			Label:    "Type",
			Options:  []Option{{Value: f.State.Type, Label: f.State.Type}},
			ReadOnly: true,
		})
	} else {
		out = append(out, Control{
			Field:   FieldType,
			Label:   "Type",
			Options: []Option{{Value: TypeString, Label: "String"}, {Value: TypeNumber, Label: "Number"}},
		})
	}
	return append(out, Control{Field: FieldShowInCollection, Label: "Show in collection", Toggle: true})
}

func (f *Form) allowed(field Field) bool {
	switch field {
	case FieldEnabled, FieldItemProp, FieldType, FieldShowInCollection:
		return !f.IsFeatureType
	case FieldItemType:
		return f.IsFeatureType
	case FieldName:
		return !f.IsFeatureType || f.MimeType == MimeHTML
	default:
		return false
	}
}

// Set applies one field edit and returns the resulting change payload.
func (f *Form) Set(field Field, value string) (api.MimeMappings, error) {
	if !f.allowed(field) {
		return nil, fmt.Errorf("%s for %s: %w", field, f.MimeType, ErrUnknownField)
	}
	switch field {
	case FieldEnabled, FieldShowInCollection:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", field, value, ErrInvalidValue)
		}
		if field == FieldEnabled {
			f.State.Enabled = b
		} else {
			f.State.ShowInCollection = b
		}
	case FieldType:
		if f.fixedType() {
			return nil, fmt.Errorf("type %s: %w", f.State.Type, ErrReadOnly)
		}
		if value != TypeString && value != TypeNumber {
			return nil, fmt.Errorf("type=%q: %w", value, ErrInvalidValue)
		}
		f.State.Type = value
	case FieldName:
		f.State.Name = value
	case FieldItemType:
		f.State.ItemType = value
	case FieldItemProp:
		f.State.ItemProp = value
	}
	return f.Change(), nil
}

// Change returns the payload carrying the current form state.
func (f *Form) Change() api.MimeMappings {
	return api.MimeMappings{f.MimeType: {f.State}}
}
