package crawler

import "testing"

const englishParagraph = `The committee met on Thursday morning to review
the proposed changes to the municipal water system. After two hours of
discussion the members agreed that the existing pipes should be replaced
in stages over the next three years, starting with the oldest sections
in the northern part of the city.`

const spanishParagraph = `El comité se reunió el jueves por la mañana para
revisar los cambios propuestos al sistema municipal de agua. Después de
dos horas de discusión los miembros acordaron que las tuberías existentes
deberían reemplazarse por etapas durante los próximos tres años.`

// TestEnglishOnly tests the two-stage language filter.
func TestEnglishOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page *ParseResult
		want bool
	}{
		{
			name: "declared english",
			page: &ParseResult{Lang: "en"},
			want: true,
		},
		{
			name: "declared english with region",
			page: &ParseResult{Lang: "en-GB"},
			want: true,
		},
		{
			name: "declared french",
			page: &ParseResult{Lang: "fr", Text: englishParagraph},
			want: false,
		},
		{
			name: "meta content-language english",
			page: &ParseResult{ContentLanguage: "en-US"},
			want: true,
		},
		{
			name: "meta content-language list",
			page: &ParseResult{ContentLanguage: "en-US, fr"},
			want: true,
		},
		{
			name: "lang attribute wins over meta",
			page: &ParseResult{Lang: "de", ContentLanguage: "en"},
			want: false,
		},
		{
			name: "no declaration, english text",
			page: &ParseResult{Text: englishParagraph},
			want: true,
		},
		{
			name: "no declaration, spanish text",
			page: &ParseResult{Text: spanishParagraph},
			want: false,
		},
		{
			name: "no declaration, too little text",
			page: &ParseResult{Text: "ok"},
			want: false,
		},
		{
			name: "garbage declaration falls back to detection",
			page: &ParseResult{Lang: "???", Text: englishParagraph},
			want: true,
		},
		{
			name: "empty page",
			page: &ParseResult{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := EnglishOnly(tt.page); got != tt.want {
				t.Errorf("EnglishOnly = %t, want %t", got, tt.want)
			}
		})
	}
}
