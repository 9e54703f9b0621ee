package endpoint

import (
	"errors"
	"testing"
)

func TestNewDefinition(t *testing.T) {
	tests := []struct {
		name     string
		epName   string
		method   string
		template string
		wantErr  error
	}{
		{
			name:     "simple template",
			epName:   "list_users",
			method:   "GET",
			template: "/users",
		},
		{
			name:     "template with parameter",
			epName:   "get_user",
			method:   "GET",
			template: "/users/{id}",
		},
		{
			name:     "template with multiple parameters",
			epName:   "get_order_item",
			method:   "GET",
			template: "/orders/{order_id}/items/{item_id}",
		},
		{
			name:     "lowercase method is normalized",
			epName:   "create_user",
			method:   "post",
			template: "/users",
		},
		{
			name:     "unsupported method",
			epName:   "patch_user",
			method:   "PATCH",
			template: "/users/{id}",
			wantErr:  ErrInvalidMethod,
		},
		{
			name:     "empty name",
			epName:   "",
			method:   "GET",
			template: "/users",
			wantErr:  ErrInvalidTemplate,
		},
		{
			name:     "missing leading slash",
			epName:   "get_user",
			method:   "GET",
			template: "users/{id}",
			wantErr:  ErrInvalidTemplate,
		},
		{
			name:     "unbalanced open brace",
			epName:   "get_user",
			method:   "GET",
			template: "/users/{id",
			wantErr:  ErrInvalidTemplate,
		},
		{
			name:     "unbalanced close brace",
			epName:   "get_user",
			method:   "GET",
			template: "/users/id}",
			wantErr:  ErrInvalidTemplate,
		},
		{
			name:     "empty parameter name",
			epName:   "get_user",
			method:   "GET",
			template: "/users/{}",
			wantErr:  ErrInvalidTemplate,
		},
		{
			name:     "duplicate parameter name",
			epName:   "get_user",
			method:   "GET",
			template: "/users/{id}/friends/{id}",
			wantErr:  ErrInvalidTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := NewDefinition(tt.epName, tt.method, tt.template)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewDefinition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDefinition() unexpected error: %v", err)
			}
			if def.Template() != tt.template {
				t.Errorf("Template() = %q, want %q", def.Template(), tt.template)
			}
		})
	}
}

func TestDefinition_Params(t *testing.T) {
	def := MustDefinition("get_order_item", "GET", "/orders/{order_id}/items/{item_id}")

	params := def.Params()
	if len(params) != 2 {
		t.Fatalf("Params() length = %d, want 2", len(params))
	}
	if params[0] != "order_id" || params[1] != "item_id" {
		t.Errorf("Params() = %v, want [order_id item_id] in declaration order", params)
	}
}

func TestMustDefinition_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustDefinition did not panic on invalid template")
		}
	}()

	MustDefinition("bad", "GET", "/users/{")
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{name: "string", value: "abc", want: "abc"},
		{name: "int", value: 42, want: "42"},
		{name: "int64", value: int64(-7), want: "-7"},
		{name: "uint", value: uint(9), want: "9"},
		{name: "float64", value: 1.5, want: "1.5"},
		{name: "bool", value: true, want: "true"},
		{name: "slice is not renderable", value: []string{"a"}, wantErr: true},
		{name: "map is not renderable", value: map[string]int{"a": 1}, wantErr: true},
		{name: "nil is not renderable", value: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderValue(tt.value)

			if tt.wantErr {
				if !errors.Is(err, ErrTypeMismatch) {
					t.Fatalf("renderValue() error = %v, want ErrTypeMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("renderValue() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("renderValue() = %q, want %q", got, tt.want)
			}
		})
	}
}
