// ABOUTME: Field metadata for admin descriptors: storage type, form widget and flags
// ABOUTME: Widgets default from the field type and can be overridden per descriptor

package admin

// FieldType is the storage-level type of a field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeUUID     FieldType = "uuid"
	TypeJSON     FieldType = "json"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeText, TypeInt, TypeFloat, TypeBool, TypeDate, TypeDateTime, TypeUUID, TypeJSON:
		return true
	}
	return false
}

// Widget names the front-end form control for a field.
type Widget string

const (
	WidgetInput          Widget = "Input"
	WidgetTextArea       Widget = "TextArea"
	WidgetRichText       Widget = "RichTextArea"
	WidgetInputNumber    Widget = "InputNumber"
	WidgetSwitch         Widget = "Switch"
	WidgetCheckbox       Widget = "Checkbox"
	WidgetDatePicker     Widget = "DatePicker"
	WidgetDateTimePicker Widget = "DateTimePicker"
	WidgetSelect         Widget = "Select"
	WidgetAsyncSelect    Widget = "AsyncSelect"
	WidgetPassword       Widget = "PasswordInput"
	WidgetSlug           Widget = "SlugInput"
	WidgetEmail          Widget = "EmailInput"
	WidgetPhone          Widget = "PhoneInput"
	WidgetUUID           Widget = "UUIDInput"
	WidgetJSON           Widget = "JsonTextArea"
)

// DefaultWidget is the widget used when neither the field nor the
// descriptor's overrides pick one.
func (t FieldType) DefaultWidget() Widget {
	switch t {
	case TypeText:
		return WidgetTextArea
	case TypeInt, TypeFloat:
		return WidgetInputNumber
	case TypeBool:
		return WidgetSwitch
	case TypeDate:
		return WidgetDatePicker
	case TypeDateTime:
		return WidgetDateTimePicker
	case TypeUUID:
		return WidgetUUID
	case TypeJSON:
		return WidgetJSON
	default:
		return WidgetInput
	}
}

// Choice is one option of a Select widget.
type Choice struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// Field describes one attribute of a model.
type Field struct {
	Name        string
	Label       string
	Type        FieldType
	Widget      Widget
	WidgetProps map[string]any
	Choices     []Choice

	// Required fields must be present when adding a record.
	Required bool
	// ReadOnly fields are serialized but ignored on add and change.
	ReadOnly bool
	// Hidden fields are never serialized; use it for password hashes.
	Hidden bool
	// ForeignKey names the model this field references, if any.
	ForeignKey string

	// Format, when set, replaces the serialized value in list and detail output.
	Format func(v any) any
}

// DisplayLabel falls back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
