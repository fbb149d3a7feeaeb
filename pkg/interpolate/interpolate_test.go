package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlainText(t *testing.T) {
	assert.Equal(t, []Segment{Literal{Text: "xyzzy"}}, Parse("xyzzy"))
}

func TestParseDollarsInOtherContexts(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "$11", want: "$11"},
		{input: "1$", want: "1$"},
		{input: "$$$", want: "$$"},
		{input: "$$el", want: "$el"},
		{input: "$${", want: "${"},
		{input: "$!", want: "$!"},
		{input: "${unclosed", want: "${unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, []Segment{Literal{Text: tt.want}}, Parse(tt.input))
		})
	}
}

func TestParseSimpleInterpolations(t *testing.T) {
	tests := []struct {
		input string
		want  []Segment
	}{
		{
			input: "chips $fish",
			want: []Segment{
				Literal{Text: "chips "},
				Expr{Offset: 6, End: 11, Source: "fish", AutoEscape: true},
			},
		},
		{
			input: "chips $fish[0]",
			want: []Segment{
				Literal{Text: "chips "},
				Expr{Offset: 6, End: 14, Source: "fish[0]", AutoEscape: true},
			},
		},
		{
			input: "chips $fish[::-1]",
			want: []Segment{
				Literal{Text: "chips "},
				Expr{Offset: 6, End: 17, Source: "fish[::-1]", AutoEscape: true},
			},
		},
		{
			input: "chips $fish[1:-1]",
			want: []Segment{
				Literal{Text: "chips "},
				Expr{Offset: 6, End: 17, Source: "fish[1:-1]", AutoEscape: true},
			},
		},
		{
			input: "chips $eggs[0].sausages mash",
			want: []Segment{
				Literal{Text: "chips "},
				Expr{Offset: 6, End: 23, Source: "eggs[0].sausages", AutoEscape: true},
				Literal{Text: " mash"},
			},
		},
		{
			input: "$x['key'] $y[\"key\"]",
			want: []Segment{
				Expr{Offset: 0, End: 9, Source: "x['key']", AutoEscape: true},
				Literal{Text: " "},
				Expr{Offset: 10, End: 19, Source: "y[\"key\"]", AutoEscape: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParsePathStopsAtInvalidPiece(t *testing.T) {
	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 2, Source: "x", AutoEscape: true},
		Literal{Text: "."},
	}, Parse("$x."))

	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 2, Source: "x", AutoEscape: true},
		Literal{Text: "[a]"},
	}, Parse("$x[a]"))
}

func TestParseDelimitedInterpolations(t *testing.T) {
	assert.Equal(t, []Segment{
		Literal{Text: "fish "},
		Expr{Offset: 5, End: 28, Source: `{"foo": "bar"}[item]`, AutoEscape: true},
		Literal{Text: " chips"},
	}, Parse(`fish ${{"foo": "bar"}[item]} chips`))
}

func TestParseNestedBraces(t *testing.T) {
	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 7, Source: "{{}}", AutoEscape: true},
	}, Parse("${{{}}}"))

	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 11, Source: "({}, {})", AutoEscape: true},
	}, Parse("${({}, {})}"))
}

func TestParseNoEscape(t *testing.T) {
	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 8, Source: "markup", AutoEscape: false},
	}, Parse("$!markup"))

	assert.Equal(t, []Segment{
		Expr{Offset: 0, End: 9, Source: "a + b", AutoEscape: false},
	}, Parse("$!{a + b}"))
}

func TestHasExpr(t *testing.T) {
	assert.True(t, HasExpr("hello $name"))
	assert.False(t, HasExpr("hello $$name"))
	assert.False(t, HasExpr("plain"))
}
