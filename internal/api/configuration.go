// ABOUTME: Configuration operation describing every model the signed-in user may list
// ABOUTME: Front-ends render menus, tables and forms from this document without hardcoded schema

package api

import (
	"context"

	"github.com/2389/modeladmin/internal/admin"
)

// Configuration is the site-wide description sent to front-ends.
type Configuration struct {
	SiteName       string               `json:"site_name"`
	SiteSignInLogo string               `json:"site_sign_in_logo,omitempty"`
	SiteHeaderLogo string               `json:"site_header_logo,omitempty"`
	SiteFavicon    string               `json:"site_favicon,omitempty"`
	PrimaryColor   string               `json:"primary_color,omitempty"`
	UsernameField  string               `json:"username_field"`
	DateFormat     string               `json:"date_format"`
	DateTimeFormat string               `json:"datetime_format"`
	Models         []ModelConfiguration `json:"models"`
}

// ModelConfiguration describes one model.
type ModelConfiguration struct {
	Name            string                `json:"name"`
	Label           string                `json:"label"`
	PrimaryKey      string                `json:"primary_key"`
	Permissions     []admin.Operation     `json:"permissions"`
	Actions         []ActionConfiguration `json:"actions"`
	ActionsOnTop    bool                  `json:"actions_on_top"`
	ActionsOnBottom bool                  `json:"actions_on_bottom"`
	Fields          []FieldConfiguration  `json:"fields"`
	Fieldsets       []admin.Fieldset      `json:"fieldsets,omitempty"`
	SearchFields    []string              `json:"search_fields,omitempty"`
	SearchHelpText  string                `json:"search_help_text,omitempty"`
	ListPerPage     int                   `json:"list_per_page"`
	SaveAs          bool                  `json:"save_as"`
	SaveAsContinue  bool                  `json:"save_as_continue"`
	SaveOnTop       bool                  `json:"save_on_top"`
	Inlines         []InlineConfiguration `json:"inlines,omitempty"`
}

// InlineConfiguration is a child model edited from its parent's form.
type InlineConfiguration struct {
	ModelConfiguration
	FKName string `json:"fk_name"`
	Extra  int    `json:"extra"`
	Max    int    `json:"max_num,omitempty"`
}

// ActionConfiguration describes one bulk action.
type ActionConfiguration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FieldConfiguration describes how one field is shown in lists and forms.
// A nil section means the field does not appear there.
type FieldConfiguration struct {
	Name                string                  `json:"name"`
	Label               string                  `json:"label"`
	Type                admin.FieldType         `json:"type"`
	ReadOnly            bool                    `json:"readonly"`
	ForeignKey          string                  `json:"foreign_key,omitempty"`
	Choices             []admin.Choice          `json:"choices,omitempty"`
	ListConfiguration   *ListFieldConfiguration `json:"list_configuration,omitempty"`
	AddConfiguration    *FormFieldConfiguration `json:"add_configuration,omitempty"`
	ChangeConfiguration *FormFieldConfiguration `json:"change_configuration,omitempty"`
}

// ListFieldConfiguration positions a field in the list table.
type ListFieldConfiguration struct {
	Index   int  `json:"index"`
	Sorter  bool `json:"sorter"`
	IsLink  bool `json:"is_link"`
	Filter  bool `json:"filter"`
	Search  bool `json:"search"`
	Visible bool `json:"visible"`
}

// FormFieldConfiguration picks a field's form widget.
type FormFieldConfiguration struct {
	Widget      admin.Widget   `json:"form_widget_type"`
	WidgetProps map[string]any `json:"form_widget_props,omitempty"`
	Required    bool           `json:"required"`
}

// Configuration describes the models the signed-in user may list.
func (s *Service) Configuration(ctx context.Context, sessionID string) (*Configuration, error) {
	user, err := s.auth.RequireUser(ctx, sessionID)
	if err != nil {
		return nil, s.fail(ctx, "configuration", err)
	}
	ctx = admin.WithUser(ctx, user)

	usernameField := "username"
	if _, um, err := s.auth.UserDescriptor(); err == nil {
		usernameField = um.UsernameField
	}

	cfg := &Configuration{
		SiteName:       s.cfg.SiteName,
		SiteSignInLogo: s.cfg.SiteSignInLogo,
		SiteHeaderLogo: s.cfg.SiteHeaderLogo,
		SiteFavicon:    s.cfg.SiteFavicon,
		PrimaryColor:   s.cfg.PrimaryColor,
		UsernameField:  usernameField,
		DateFormat:     s.cfg.DateFormat,
		DateTimeFormat: s.cfg.DateTimeFormat,
		Models:         []ModelConfiguration{},
	}
	for _, d := range s.registry.Descriptors() {
		if !s.allowed(ctx, user, d, admin.OpList) {
			continue
		}
		cfg.Models = append(cfg.Models, s.describeModel(ctx, user, d))
	}
	return cfg, nil
}

func (s *Service) describeModel(ctx context.Context, user *admin.User, d *admin.Descriptor) ModelConfiguration {
	mc := ModelConfiguration{
		Name:            d.Name,
		Label:           d.DisplayLabel(),
		PrimaryKey:      d.PK(),
		Permissions:     []admin.Operation{},
		Actions:         []ActionConfiguration{},
		ActionsOnTop:    d.ActionsOnTop,
		ActionsOnBottom: d.ActionsOnBottom,
		Fields:          describeFields(d),
		Fieldsets:       d.Fieldsets,
		SearchFields:    d.SearchFields,
		SearchHelpText:  d.SearchHelpText,
		ListPerPage:     d.ListPerPage,
		SaveAs:          d.SaveAs,
		SaveAsContinue:  d.SaveAsContinue,
		SaveOnTop:       d.SaveOnTop,
	}
	if mc.ListPerPage == 0 {
		mc.ListPerPage = s.cfg.DefaultListLimit
	}
	for _, op := range []admin.Operation{admin.OpAdd, admin.OpChange, admin.OpDelete, admin.OpExport} {
		if s.allowed(ctx, user, d, op) {
			mc.Permissions = append(mc.Permissions, op)
		}
	}
	if s.allowed(ctx, user, d, admin.OpAction) {
		for _, a := range d.Actions {
			mc.Actions = append(mc.Actions, ActionConfiguration{Name: a.Name, Description: a.Description})
		}
	}
	for _, in := range d.Inlines {
		if !s.allowed(ctx, user, in.Descriptor, admin.OpList) {
			continue
		}
		mc.Inlines = append(mc.Inlines, InlineConfiguration{
			ModelConfiguration: s.describeModel(ctx, user, in.Descriptor),
			FKName:             in.FKField,
			Extra:              in.Extra,
			Max:                in.Max,
		})
	}
	return mc
}

func describeFields(d *admin.Descriptor) []FieldConfiguration {
	display := d.DisplayFields()
	index := make(map[string]int, len(display))
	for i, name := range display {
		index[name] = i
	}
	links := d.ListDisplayLinks
	if len(links) == 0 && len(display) > 0 {
		links = display[:1]
	}

	var out []FieldConfiguration
	for _, f := range d.Fields {
		fc := FieldConfiguration{
			Name:       f.Name,
			Label:      f.DisplayLabel(),
			Type:       f.Type,
			ReadOnly:   d.IsReadOnly(f),
			ForeignKey: f.ForeignKey,
			Choices:    f.Choices,
		}
		serializable := d.Serializable(f)
		password := isPassword(d, f)

		if i, ok := index[f.Name]; ok && serializable {
			fc.ListConfiguration = &ListFieldConfiguration{
				Index:   i,
				Sorter:  true,
				IsLink:  containsName(links, f.Name),
				Filter:  containsName(d.ListFilter, f.Name),
				Search:  containsName(d.SearchFields, f.Name),
				Visible: true,
			}
		}
		form := &FormFieldConfiguration{
			Widget:      d.WidgetFor(f),
			WidgetProps: f.WidgetProps,
			Required:    f.Required,
		}
		if !d.IsExcluded(f) && !fc.ReadOnly && f.Name != d.PK() && (serializable || password) {
			fc.AddConfiguration = form
		}
		if !d.IsExcluded(f) && f.Name != d.PK() && serializable && !password {
			fc.ChangeConfiguration = form
		}
		if fc.ListConfiguration == nil && fc.AddConfiguration == nil && fc.ChangeConfiguration == nil {
			continue
		}
		out = append(out, fc)
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
