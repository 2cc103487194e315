package classify_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/classify"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/languages"
)

var (
	hashSpec = &languages.LanguageSpec{Name: "Hash", LineComments: []string{"#"}}
	cSpec    = &languages.LanguageSpec{
		Name:         "C",
		LineComments: []string{"//"},
		Block:        &languages.BlockComment{Start: "/*", End: "*/"},
	}
	blockOnly = &languages.LanguageSpec{
		Name:  "HTML",
		Block: &languages.BlockComment{Start: "<!--", End: "-->"},
	}
)

func fc(total, code, comment, blank int64) counts.FileCounts {
	return counts.FileCounts{Files: 1, Total: total, Code: code, Comment: comment, Blank: blank}
}

func TestClassifyLineCommentScenario(t *testing.T) {
	t.Parallel()

	content := "# header\nx = 1\n\ny = 2  # trailing\n"

	assert.Equal(t, fc(4, 2, 1, 1), classify.Classify([]byte(content), hashSpec, classify.ModeFull))
}

func TestClassifyBlockCommentScenario(t *testing.T) {
	t.Parallel()

	content := "/* start\nstill comment */ code_here();\n"

	assert.Equal(t, fc(2, 1, 1, 0), classify.Classify([]byte(content), cSpec, classify.ModeFull))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    *languages.LanguageSpec
		content string
		want    counts.FileCounts
	}{
		{"empty", cSpec, "", fc(0, 0, 0, 0)},
		{"no trailing newline", cSpec, "a()\nb()", fc(2, 2, 0, 0)},
		{"crlf", cSpec, "// c\r\n\r\nx();\r\n", fc(3, 1, 1, 1)},
		{"indented line comment", cSpec, "    // note\n", fc(1, 0, 1, 0)},
		{"single line block", cSpec, "/* one */\n", fc(1, 0, 1, 0)},
		{"single line block with code after", cSpec, "/* one */ x();\n", fc(1, 1, 0, 0)},
		{"code before single line block", cSpec, "x(); /* one */\n", fc(1, 1, 0, 0)},
		{"code before open block", cSpec, "x(); /* open\nstill\n*/\n", fc(3, 1, 2, 0)},
		{"blank inside block", cSpec, "/*\n\n   \n*/\n", fc(4, 0, 2, 2)},
		{"close then reopen", cSpec, "/* a\n*/ x(); /* b\nc\n*/\ny();\n", fc(5, 2, 3, 0)},
		{"close then closed block stays out", cSpec, "/* a\n*/ x(); /* b */\ny();\n", fc(3, 2, 1, 0)},
		{"nested open ignored", cSpec, "/* a /* b\n*/\nz();\n", fc(3, 1, 2, 0)},
		{"string literal not special", cSpec, "s = \"// not comment\";\n", fc(1, 1, 0, 0)},
		{"no block markers", hashSpec, "/* x\ny */\n", fc(2, 2, 0, 0)},
		{"block only language", blockOnly, "<!-- a -->\n<p>\n<!--\nb\n-->\n", fc(5, 1, 4, 0)},
		{"nil spec counts code", nil, "# a\n\nb\n", fc(3, 2, 0, 1)},
		{"multiple line markers", &languages.LanguageSpec{LineComments: []string{"//", "#"}}, "# a\n// b\nc\n", fc(3, 1, 2, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify.Classify([]byte(tt.content), tt.spec, classify.ModeFull)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Consistent())
		})
	}
}

func TestClassifyUltraMode(t *testing.T) {
	t.Parallel()

	content := "/* start\nstill comment */ code_here();\n\n// x\n"

	got := classify.Classify([]byte(content), cSpec, classify.ModeUltra)
	assert.Equal(t, fc(4, 3, 0, 1), got)
	assert.Equal(t, "ultra", classify.ModeUltra.String())
	assert.Equal(t, "full", classify.ModeFull.String())
}

func TestClassifierState(t *testing.T) {
	t.Parallel()

	c := classify.New(cSpec, classify.ModeFull)

	require.Equal(t, classify.Comment, c.Next([]byte("/* open")))
	assert.True(t, c.InBlock())
	require.Equal(t, classify.Blank, c.Next([]byte("   ")))
	assert.True(t, c.InBlock())
	require.Equal(t, classify.Comment, c.Next([]byte("close */")))
	assert.False(t, c.InBlock())
}

func TestClassifyLineInvariant(t *testing.T) {
	t.Parallel()

	fragments := []string{"", "  ", "x();", "// c", "/* a", "b */", "/* c */", "y(); /* d", "*/ z();", "#", "\t"}
	rng := rand.New(rand.NewPCG(11, 13))

	for range 300 {
		n := rng.IntN(40)
		lines := make([]string, n)

		for i := range lines {
			lines[i] = fragments[rng.IntN(len(fragments))]
		}

		content := strings.Join(lines, "\n")

		for _, mode := range []classify.Mode{classify.ModeFull, classify.ModeUltra} {
			got := classify.Classify([]byte(content), cSpec, mode)
			require.True(t, got.Consistent(), content)

			if mode == classify.ModeUltra {
				require.Zero(t, got.Comment)
			}
		}
	}
}
