package publish

import (
	"strings"
	"testing"
)

func TestRenderCaption(t *testing.T) {
	tests := []struct {
		name string
		in   CaptionInput
		want string
	}{
		{
			name: "all fields",
			in: CaptionInput{
				Link: "https://example.com/?a=1&b=2", Title: "T", Note: "<b>hi</b>",
				Tags: []string{"#go", "#bot"}, Spoiler: true, OwnerID: 5, DisplayName: "bob", ShowSubmitter: true,
			},
			want: "⚠️ Spoiler ⚠️\n🔗 Link: https://example.com/?a=1&amp;b=2\n🔖 Title:\n【T】\n" +
				"📝 Note:\n&lt;b&gt;hi&lt;/b&gt;\n🏷 Tags: #go #bot\n\n" +
				`Submitted by: <a href="tg://user?id=5">@bob</a>`,
		},
		{
			name: "tags only",
			in:   CaptionInput{Tags: []string{"#a"}},
			want: "🏷 Tags: #a",
		},
		{
			name: "submitter without name",
			in:   CaptionInput{OwnerID: 9, ShowSubmitter: true},
			want: `Submitted by: <a href="tg://user?id=9">@user9</a>`,
		},
		{
			name: "spoiler only",
			in:   CaptionInput{Spoiler: true, OwnerID: 9},
			want: "⚠️ Spoiler ⚠️",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderCaption(tt.in); got != tt.want {
				t.Errorf("RenderCaption() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestLengthCountsUTF16(t *testing.T) {
	if got := Length("a😀长"); got != 4 {
		t.Errorf("Length = %d, want 4", got)
	}
	if got := Length(`<a href="tg://user?id=7">@al</a> &amp;`); got != 5 {
		t.Errorf("Length with markup = %d, want 5", got)
	}
}

func TestRenderTextKeepsMarkup(t *testing.T) {
	in := CaptionInput{Note: strings.Repeat("x", 5000), Tags: []string{"#a"}, OwnerID: 3, ShowSubmitter: true}
	got := RenderText(in, TextLimit)
	if Length(got) > TextLimit {
		t.Errorf("length %d over limit", Length(got))
	}
	if !strings.HasSuffix(got, "</a>") {
		t.Errorf("attribution lost: %q", got[len(got)-40:])
	}
}

func TestRenderTextDropsInOrder(t *testing.T) {
	base := CaptionInput{
		Link:          "https://example.com/" + strings.Repeat("x", 2000),
		Title:         "T",
		Note:          "n",
		Tags:          []string{"#a"},
		OwnerID:       3,
		DisplayName:   "bob",
		ShowSubmitter: true,
	}
	got := RenderText(base, CaptionLimit)
	if Length(got) > CaptionLimit {
		t.Fatalf("length %d over limit", Length(got))
	}
	if strings.Contains(got, "Link:") || strings.Contains(got, "Tags:") {
		t.Errorf("tags and link should be dropped: %q", got)
	}
	if !strings.HasSuffix(got, `<a href="tg://user?id=3">@bob</a>`) {
		t.Errorf("attribution lost: %q", got)
	}
}
