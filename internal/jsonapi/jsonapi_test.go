package jsonapi

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
	"github.com/bscott/mailgate/internal/validation"
)

func TestMergeIncludes(t *testing.T) {
	got := MergeIncludes([]string{
		"MessageItem",
		"MailFolder",
		"MailFolder.MessageItem",
		"MailFolder.MessageItem.Body",
		"MailFolder.MailAccount",
	})
	want := []string{"MessageItem", "MailFolder.MessageItem.Body", "MailFolder.MailAccount"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeIncludes() mismatch (-want +got):\n%s", diff)
	}

	// merging an already merged list changes nothing
	if diff := cmp.Diff(want, MergeIncludes(got)); diff != "" {
		t.Errorf("MergeIncludes() not idempotent (-want +got):\n%s", diff)
	}
}

func TestFieldsetRule(t *testing.T) {
	target := resource.MessageItem{}
	newRule := func(relfield bool, includes ...string) *FieldsetRule {
		return &FieldsetRule{
			Includes:     includes,
			FieldsByType: resource.FieldsByType(target),
			RootType:     target.Type(),
			Relfield:     relfield,
		}
	}

	tests := []struct {
		name     string
		rule     *FieldsetRule
		param    string
		value    string
		valid    bool
		contains string
		excludes string
	}{
		{"empty means defaults", newRule(false), "fields[MessageItem]", "", true, "", ""},
		{"bare wildcard", newRule(false), "fields[MessageItem]", "*", false, `"*"`, ""},
		{"wildcard with fields", newRule(false), "fields[MessageItem]", "*,previewText,date", true, "", ""},
		{"unknown field", newRule(false), "fields[MessageItem]", "MailFolder,date", false, `contained "MailFolder"`, `contained "MailFolder", "date"`},
		{"wildcard with unknown", newRule(false), "fields[MessageItem]", "*,nope", false, `contained "nope"`, ""},
		{"type not included", newRule(false), "fields[MailFolder]", "name", false, "cannot be found in the list of includes", ""},
		{"type included", newRule(false, "MailFolder"), "fields[MailFolder]", "name,unreadMessages", true, "", ""},
		{"no fields for type", newRule(false, "Unknown"), "fields[Unknown]", "a", false, "cannot find fields", ""},
		{"relfield bare wildcard", newRule(true), "fields[MessageItem]", "*", true, "", ""},
		{"relfield prefixes", newRule(true), "fields[MessageItem]", "-date,+previewText", true, "", ""},
		{"relfield unknown", newRule(true), "fields[MessageItem]", "+body", false, `contained "body"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := query.Parameter{Name: tt.param, Value: tt.value}
			if !tt.rule.Supports(p) {
				t.Fatalf("Supports(%q) = false", tt.param)
			}
			var errs validation.Errors
			got := tt.rule.Validate(p, &errs)
			if got != tt.valid {
				t.Fatalf("Validate(%q) = %v, want %v (%s)", tt.value, got, tt.valid, errs.Error())
			}
			if tt.valid {
				return
			}
			detail := errs.All()[0].Detail
			if !strings.Contains(detail, tt.contains) {
				t.Errorf("detail = %q, want it to contain %q", detail, tt.contains)
			}
			if tt.excludes != "" && strings.Contains(detail, tt.excludes) {
				t.Errorf("detail = %q, must not contain %q", detail, tt.excludes)
			}
		})
	}
}

func TestSortFields(t *testing.T) {
	folder := &resource.Static{
		Name:      "MailFolder",
		FieldList: []string{"unreadMessages", "totalMessages"},
	}
	item := &resource.Static{
		Name:      "MessageItem",
		FieldList: []string{"subject", "date", "size"},
		Related:   []resource.Description{folder},
	}

	want := []string{
		"subject", "-subject", "date", "-date", "size", "-size",
		"MessageItem.subject", "-MessageItem.subject",
		"MessageItem.date", "-MessageItem.date",
		"MessageItem.size", "-MessageItem.size",
		"MailFolder.unreadMessages", "-MailFolder.unreadMessages",
		"MailFolder.totalMessages", "-MailFolder.totalMessages",
	}
	got := SortFields(item)
	if len(got) != 16 {
		t.Errorf("len(SortFields()) = %d, want 16", len(got))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeRule(t *testing.T) {
	rule := &IncludeRule{Paths: resource.AllRelationshipPaths(resource.MessageItem{}, false)}

	tests := []struct {
		value string
		valid bool
	}{
		{"MailFolder", true},
		{"MailFolder,MailFolder.MailAccount", true},
		{"MessageBody.MailFolder.MailAccount", true},
		{"MailAccount", false},
		{"MailFolder.MessageItem", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var errs validation.Errors
			got := rule.Validate(query.Parameter{Name: "include", Value: tt.value}, &errs)
			if got != tt.valid {
				t.Errorf("Validate(%q) = %v, want %v (%s)", tt.value, got, tt.valid, errs.Error())
			}
		})
	}
}

func filterAttributes() []string {
	return FilterAttributes(resource.MessageItem{}, []string{"subject", "size", "date", "seen"})
}

func TestPnFilterRule(t *testing.T) {
	rule := &PnFilterRule{Attributes: filterAttributes()}

	tests := []struct {
		name     string
		value    string
		contains string
	}{
		{"valid", `{"=":{"size":1000}}`, ""},
		{"qualified attribute", `{"=":{"MessageItem.subject":"hi"}}`, ""},
		{"missing operator", `{"size":1000}`, "is not a valid operator"},
		{"too few operands", `{"OR":[{"=":{"size":1000}}]}`, "expects at least 2 operands"},
		{"function as attribute", `{"OR":[{"=":{"size":1000}},{">":{"IN":{"subject":["x"]}}}]}`, "needs a valid attribute"},
		{"not json", `{size`, "must be valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs validation.Errors
			got := rule.Validate(query.Parameter{Name: "filter", Value: tt.value}, &errs)
			if tt.contains == "" {
				if !got {
					t.Errorf("Validate(%s) = false: %s", tt.value, errs.Error())
				}
				return
			}
			if got {
				t.Fatalf("Validate(%s) = true, want false", tt.value)
			}
			if !strings.Contains(errs.Error(), tt.contains) {
				t.Errorf("error = %q, want it to contain %q", errs.Error(), tt.contains)
			}
		})
	}
}

func TestCollectionValidator(t *testing.T) {
	v := &CollectionValidator{FilterAttributes: filterAttributes()}

	tests := []struct {
		name       string
		raw        string
		wantErrors int
	}{
		{"empty", "", 0},
		{"full", "include=MailFolder&fields[MailFolder]=name&fields[MessageItem]=subject,date&sort=-date&start=0&limit=25&filter=%7B%22%3D%22%3A%7B%22seen%22%3Atrue%7D%7D", 0},
		{"unknown parameter", "foo=bar", 1},
		{"everything wrong", "foo=1&include=Nope&sort=nope&limit=0&fields[MailFolder]=name", 5},
		{"bad filter", "filter=%7B%22size%22%3A1%7D", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := query.Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			q := NewCollectionQuery(resource.MessageItem{}, params)

			var errs validation.Errors
			valid, err := validation.Validate(v, q, &errs)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if valid != (tt.wantErrors == 0) {
				t.Errorf("valid = %v, want %v", valid, tt.wantErrors == 0)
			}
			if errs.Len() != tt.wantErrors {
				t.Errorf("errs.Len() = %d, want %d: %s", errs.Len(), tt.wantErrors, errs.Error())
			}
		})
	}
}

func TestResourceValidator(t *testing.T) {
	v := &ResourceValidator{}

	params, _ := query.Parse("include=MailFolder&sort=date")
	q := NewResourceQuery(resource.MessageItem{}, params)

	var errs validation.Errors
	valid, err := validation.Validate(v, q, &errs)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if valid {
		t.Error("sort must not be accepted on a single resource")
	}
	if errs.Len() != 1 || !strings.Contains(errs.All()[0].Detail, `"sort"`) {
		t.Errorf("errors = %s, want one error naming sort", errs.Error())
	}

	if v.Supports(NewCollectionQuery(resource.MessageItem{}, nil)) {
		t.Error("ResourceValidator must not support collection queries")
	}
	if _, err := validation.Validate(v, NewCollectionQuery(resource.MessageItem{}, nil), &errs); err == nil {
		t.Error("Validate() on unsupported query should return an error")
	}
}

func TestQueryFieldset(t *testing.T) {
	target := resource.MailFolder{}

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"defaults", "", target.DefaultFields()},
		{"explicit", "fields[MailFolder]=name,totalMessages", []string{"name", "totalMessages"}},
		{"remove", "fields[MailFolder]=-data", []string{"name", "folderType", "unreadMessages", "totalMessages"}},
		{"wildcard", "fields[MailFolder]=*", target.Fields()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, _ := query.Parse(tt.raw)
			got := NewResourceQuery(target, params).Fieldset("MailFolder")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fieldset() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuerySortAndWindow(t *testing.T) {
	params, _ := query.Parse("sort=-MessageItem.date,subject,MailFolder.name&start=10&limit=5")
	q := NewCollectionQuery(resource.MessageItem{}, params)

	want := []SortField{
		{Field: "date", Descending: true},
		{Field: "subject"},
		{Type: "MailFolder", Field: "name"},
	}
	if diff := cmp.Diff(want, q.Sort()); diff != "" {
		t.Errorf("Sort() mismatch (-want +got):\n%s", diff)
	}
	if q.Start() != 10 || q.Limit() != 5 {
		t.Errorf("Start(), Limit() = %d, %d, want 10, 5", q.Start(), q.Limit())
	}

	empty := NewCollectionQuery(resource.MessageItem{}, nil)
	if empty.Start() != 0 || empty.Limit() != -1 {
		t.Errorf("defaults = %d, %d, want 0, -1", empty.Start(), empty.Limit())
	}
}

func TestProblemsFromErrors(t *testing.T) {
	var errs validation.Errors
	p := query.Parameter{Name: "sort", Value: "nope"}
	errs.Add(validation.NewError(p, "bad sort"))
	errs.Add(validation.NewError(&query.Simple{}, "bad query"))

	problems := ProblemsFromErrors(&errs, "/MailAccounts?sort=nope")
	if len(problems) != 2 {
		t.Fatalf("len(problems) = %d, want 2", len(problems))
	}
	if problems[0].Title != "Bad Request" || problems[0].Status != 400 {
		t.Errorf("problem = %+v, want 400 Bad Request", problems[0])
	}
	if problems[0].AdditionalDetails == nil || *problems[0].AdditionalDetails.Parameter != p {
		t.Errorf("AdditionalDetails = %+v, want parameter %v", problems[0].AdditionalDetails, p)
	}
	if problems[1].AdditionalDetails != nil {
		t.Errorf("query level problem should not carry a parameter")
	}
}
