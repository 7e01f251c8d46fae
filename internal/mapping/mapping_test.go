package mapping

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/csvimport/internal/csvparse"
)

var customerFields = []Field{
	{Name: "email", Label: "Email Address", Required: true},
	{Name: "first_name", Label: "First Name"},
	{Name: "phone"},
}

func TestAutoMatch(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		existing Mapping
		opts     Options
		want     Mapping
	}{
		{
			name:    "match by name",
			headers: []string{"phone", "email"},
			want:    Mapping{"email": "email", "first_name": "", "phone": "phone"},
		},
		{
			name:    "match by label",
			headers: []string{"First Name", "Email Address"},
			want:    Mapping{"email": "Email Address", "first_name": "First Name", "phone": ""},
		},
		{
			name:    "case sensitive by default",
			headers: []string{"EMAIL", "Phone"},
			want:    Mapping{"email": "", "first_name": "", "phone": ""},
		},
		{
			name:    "ignore case",
			headers: []string{"EMAIL", "Phone"},
			opts:    Options{IgnoreCase: true},
			want:    Mapping{"email": "EMAIL", "first_name": "", "phone": "Phone"},
		},
		{
			name:    "first header wins",
			headers: []string{"Email Address", "email"},
			want:    Mapping{"email": "Email Address", "first_name": "", "phone": ""},
		},
		{
			name:     "existing choice preserved",
			headers:  []string{"email", "contact"},
			existing: Mapping{"email": "contact"},
			want:     Mapping{"email": "contact", "first_name": "", "phone": ""},
		},
		{
			name:     "empty existing entry is retried",
			headers:  []string{"email"},
			existing: Mapping{"email": ""},
			want:     Mapping{"email": "email", "first_name": "", "phone": ""},
		},
		{
			name:    "containment off leaves partial headers alone",
			headers: []string{"Customer Email Address", "Phone Number"},
			want:    Mapping{"email": "", "first_name": "", "phone": ""},
		},
		{
			name:    "containment header contains label",
			headers: []string{"Customer Email Address", "Phone Number"},
			opts:    Options{Containment: true},
			want:    Mapping{"email": "Customer Email Address", "first_name": "", "phone": "Phone Number"},
		},
		{
			name:    "containment label contains header",
			headers: []string{"first"},
			opts:    Options{Containment: true},
			want:    Mapping{"email": "", "first_name": "first", "phone": ""},
		},
		{
			name:    "containment skips blank headers",
			headers: []string{"", "  ", "x"},
			opts:    Options{Containment: true},
			want:    Mapping{"email": "", "first_name": "", "phone": ""},
		},
		{
			name:    "exact match beats earlier containment candidate",
			headers: []string{"work phone", "phone"},
			opts:    Options{Containment: true},
			want:    Mapping{"email": "", "first_name": "", "phone": "phone"},
		},
		{
			name:    "no headers",
			headers: nil,
			want:    Mapping{"email": "", "first_name": "", "phone": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AutoMatch(tt.headers, customerFields, tt.existing, tt.opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AutoMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAutoMatch_DoesNotModifyInput(t *testing.T) {
	existing := Mapping{"phone": ""}
	_ = AutoMatch([]string{"phone"}, customerFields, existing, Options{})

	if existing["phone"] != "" {
		t.Errorf("existing mapping was modified: %v", existing)
	}
}

func TestAutoMatch_Idempotent(t *testing.T) {
	headers := []string{"Email Address", "phone", "notes"}
	opts := Options{IgnoreCase: true, Containment: true}

	first := AutoMatch(headers, customerFields, nil, opts)
	second := AutoMatch(headers, customerFields, first, opts)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass = %v, want %v", second, first)
	}
}

func TestMapField(t *testing.T) {
	m := Mapping{"email": "email"}

	got := MapField(m, "email", "contact")
	if got["email"] != "contact" {
		t.Errorf("MapField() email = %q, want %q", got["email"], "contact")
	}
	if m["email"] != "email" {
		t.Errorf("MapField modified its input: %v", m)
	}

	got = MapField(got, "email", "")
	if got["email"] != "" {
		t.Errorf("MapField() with empty header = %q, want unmapped", got["email"])
	}
}

func TestPrune(t *testing.T) {
	m := Mapping{"email": "Email", "phone": "Phone", "first_name": ""}

	got := Prune(m, []string{"Email", "Name"})
	want := Mapping{"email": "Email", "phone": "", "first_name": ""}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Prune() = %v, want %v", got, want)
	}
}

func TestReset(t *testing.T) {
	got := Reset(customerFields)
	want := Mapping{"email": "", "first_name": "", "phone": ""}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reset() = %v, want %v", got, want)
	}
}

func TestApply(t *testing.T) {
	rows := []csvparse.Row{
		{"E": "a@example.com", "P": "555"},
		{"E": "b@example.com", "P": ""},
	}
	m := Mapping{"email": "E", "phone": "P", "first_name": ""}

	got := Apply(rows, customerFields, m)
	want := []Record{
		{"email": "a@example.com", "first_name": "", "phone": "555"},
		{"email": "b@example.com", "first_name": "", "phone": ""},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApply_NoRows(t *testing.T) {
	got := Apply(nil, customerFields, Mapping{})
	if got == nil || len(got) != 0 {
		t.Errorf("Apply(nil) = %v, want empty non-nil slice", got)
	}
}

func TestValidate(t *testing.T) {
	headers := []string{"E", "P"}

	tests := []struct {
		name      string
		m         Mapping
		wantKinds []IssueKind
	}{
		{
			name: "complete",
			m:    Mapping{"email": "E", "phone": "P"},
		},
		{
			name:      "required unmapped",
			m:         Mapping{"phone": "P"},
			wantKinds: []IssueKind{IssueRequiredUnmapped},
		},
		{
			name:      "optional unmapped is fine",
			m:         Mapping{"email": "E", "first_name": ""},
			wantKinds: nil,
		},
		{
			name:      "unknown header",
			m:         Mapping{"email": "E", "first_name": "Gone"},
			wantKinds: []IssueKind{IssueUnknownHeader},
		},
		{
			name:      "duplicate header",
			m:         Mapping{"email": "E", "first_name": "P", "phone": "P"},
			wantKinds: []IssueKind{IssueDuplicateHeader},
		},
		{
			name:      "several problems in field order",
			m:         Mapping{"first_name": "Gone"},
			wantKinds: []IssueKind{IssueRequiredUnmapped, IssueUnknownHeader},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(headers, customerFields, tt.m)

			var kinds []IssueKind
			for _, i := range issues {
				kinds = append(kinds, i.Kind)
				if i.Message == "" {
					t.Errorf("issue %+v has no message", i)
				}
			}
			if !reflect.DeepEqual(kinds, tt.wantKinds) {
				t.Errorf("Validate() kinds = %v, want %v", kinds, tt.wantKinds)
			}
		})
	}
}

func TestHasRequiredGaps(t *testing.T) {
	if HasRequiredGaps(nil) {
		t.Error("HasRequiredGaps(nil) = true, want false")
	}
	if HasRequiredGaps([]Issue{{Kind: IssueUnknownHeader}}) {
		t.Error("HasRequiredGaps(unknown header) = true, want false")
	}
	if !HasRequiredGaps([]Issue{{Kind: IssueDuplicateHeader}, {Kind: IssueRequiredUnmapped}}) {
		t.Error("HasRequiredGaps(required unmapped) = false, want true")
	}
}

func TestField_DisplayLabel(t *testing.T) {
	if got := (Field{Name: "sku"}).DisplayLabel(); got != "sku" {
		t.Errorf("DisplayLabel() = %q, want %q", got, "sku")
	}
	if got := (Field{Name: "sku", Label: "SKU"}).DisplayLabel(); got != "SKU" {
		t.Errorf("DisplayLabel() = %q, want %q", got, "SKU")
	}
}
