package models

import "time"

// FieldMapping binds one logical dealer field to the variable name the vendor
// template expects. Order matters for the vendor payload, so the map is a
// slice rather than a Go map.
type FieldMapping struct {
	Field    string `json:"field"`
	Variable string `json:"variable"`
}

// Template describes a vendor render template and its field map.
type Template struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	FieldMap  []FieldMapping `json:"field_map,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// DefaultFieldMap matches the variable names used by the production vendor
// templates.
func DefaultFieldMap() []FieldMapping {
	return []FieldMapping{
		{Field: "logo", Variable: "Logo"},
		{Field: "name", Variable: "Public-Company-Name"},
		{Field: "phone", Variable: "Public-Company-Phone"},
		{Field: "website", Variable: "Public-Company-Website"},
	}
}
