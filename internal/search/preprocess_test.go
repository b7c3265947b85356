package search

import "testing"

func TestFlattenMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  \n\t", ""},
		{"headings and emphasis", "## Key **Findings**\nUse `gRPC` here", "Key Findings\nUse gRPC here"},
		{"lists", "- alpha\n* beta\n+ gamma\n12. delta", "alpha\nbeta\ngamma\ndelta"},
		{"quote", "> quoted line", "quoted line"},
		{"blank runs collapse", "\n\nIntro\n\n\n\nBody\n", "Intro\n\nBody"},
		{
			"table",
			"| Term | Meaning |\n|:-----|------:|\n| RAG | retrieval |\n|  |  |",
			"Term Meaning\nRAG retrieval",
		},
		{"year is not a list marker", "2024. A year in review", "2024. A year in review"},
		{"decimal is not a list marker", "3.5 percent", "3.5 percent"},
		{
			"mixed document",
			"\n\n# Title\n\n\n- one\n* **two**\n1. three\n| a | b |\n|---|:-:|\n| c |  |\n> quote `code`\n",
			"Title\n\none\ntwo\nthree\na b\nc\nquote code",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FlattenMarkdown(tc.in); got != tc.want {
				t.Fatalf("FlattenMarkdown(%q)\n got %q\nwant %q", tc.in, got, tc.want)
			}
		})
	}
}
