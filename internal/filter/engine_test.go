package filter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		allowAll bool
		rules    []Rule
	}{
		{name: "star allows all", spec: "*", allowAll: true},
		{name: "empty allows all", spec: "  ", allowAll: true},
		{name: "only separators allows all", spec: " , ,", allowAll: true},
		{
			name: "mixed entries",
			spec: ".PDF, zip ,application/epub+zip, image/*",
			rules: []Rule{
				{Kind: RuleExtension, Value: ".pdf"},
				{Kind: RuleExtension, Value: ".zip"},
				{Kind: RuleMIME, Value: "application/epub+zip"},
				{Kind: RuleMIMEPrefix, Value: "image"},
			},
		},
		{
			name:  "duplicates collapse",
			spec:  ".pdf,pdf,.PDF",
			rules: []Rule{{Kind: RuleExtension, Value: ".pdf"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.spec)
			if a.AllowsAll() != tt.allowAll {
				t.Errorf("AllowsAll() = %v, want %v", a.AllowsAll(), tt.allowAll)
			}
			if diff := cmp.Diff(tt.rules, a.Rules()); diff != "" {
				t.Errorf("Rules() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		fileName string
		mime     string
		want     bool
	}{
		{name: "allow all", spec: "*", fileName: "a.exe", mime: "application/x-msdownload", want: true},
		{name: "extension match", spec: ".pdf,.zip", fileName: "Report.PDF", want: true},
		{name: "extension miss", spec: ".pdf,.zip", fileName: "notes.txt", mime: "text/plain", want: false},
		{name: "exact mime", spec: "application/pdf", fileName: "noext", mime: "Application/PDF", want: true},
		{name: "wildcard mime", spec: "image/*", fileName: "x.bin", mime: "image/png", want: true},
		{name: "wildcard does not match prefix substring", spec: "image/*", mime: "imagex/png", want: false},
		{name: "no name no mime", spec: ".pdf", want: false},
		{name: "empty spec allows", spec: "", fileName: "x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := New(tt.spec).Validate(tt.fileName, tt.mime)
			if ok != tt.want {
				t.Errorf("Validate(%q, %q) = %v, want %v", tt.fileName, tt.mime, ok, tt.want)
			}
			if ok && reason != "" {
				t.Errorf("accepted with reason %q", reason)
			}
			if !ok && reason == "" {
				t.Error("rejected without reason")
			}
		})
	}
}

func TestRejectionReason(t *testing.T) {
	a := New(".pdf,application/zip")
	_, reason := a.Validate("movie.mkv", "video/x-matroska")
	for _, want := range []string{"movie.mkv", "video/x-matroska", ".pdf", "zip"} {
		if !strings.Contains(reason, want) {
			t.Errorf("reason %q does not mention %q", reason, want)
		}
	}
}

func TestDescription(t *testing.T) {
	if got := New("*").Description(); got != "all file types" {
		t.Errorf("Description() = %q", got)
	}
	got := New("zip,.pdf,application/x-rar,image/*").Description()
	want := "• extensions: .pdf, .zip\n• types: image/*, x-rar"
	if got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}

	var nilList *Allowlist
	if !nilList.AllowsAll() {
		t.Error("nil allowlist should allow all")
	}
}
