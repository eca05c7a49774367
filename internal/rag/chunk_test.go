package rag

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	cfg := ChunkerConfig{ChunkSize: 100, Overlap: 20}

	tests := []struct {
		name      string
		text      string
		cfg       ChunkerConfig
		wantCount int
	}{
		{
			name:      "empty input",
			text:      "",
			cfg:       cfg,
			wantCount: 0,
		},
		{
			name:      "whitespace only",
			text:      strings.Repeat(" \n\t", 80),
			cfg:       cfg,
			wantCount: 0,
		},
		{
			name:      "fits in one chunk",
			text:      strings.Repeat("a", 50),
			cfg:       cfg,
			wantCount: 1,
		},
		{
			name:      "exactly chunk size",
			text:      strings.Repeat("a", 100),
			cfg:       cfg,
			wantCount: 1,
		},
		{
			name:      "two overlapping windows",
			text:      strings.Repeat("a", 150),
			cfg:       cfg,
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.cfg)
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d chunks, got %d", tt.wantCount, len(got))
			}
		})
	}
}

func TestSplitTextCoverageAndStride(t *testing.T) {
	cfg := ChunkerConfig{ChunkSize: 120, Overlap: 30}
	text := strings.Repeat("loan disbursement policy text ", 40)
	runes := []rune(text)

	chunks := SplitText(text, cfg)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	// First chunk starts at 0, last chunk ends at len(text).
	if chunks[0].Start != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].Start)
	}
	if chunks[len(chunks)-1].End != len(runes) {
		t.Errorf("last chunk ends at %d, want %d", chunks[len(chunks)-1].End, len(runes))
	}

	for i, c := range chunks {
		if c.Start < 0 || c.Start >= c.End || c.End > len(runes) {
			t.Errorf("chunk %d has invalid bounds [%d, %d)", i, c.Start, c.End)
		}
		if i > 0 {
			// Stride between consecutive starts equals chunk_size - overlap,
			// which also bounds the gap between covered spans.
			if got := c.Start - chunks[i-1].Start; got != cfg.Step() {
				t.Errorf("stride between chunks %d and %d is %d, want %d", i-1, i, got, cfg.Step())
			}
			if c.Start > chunks[i-1].End {
				t.Errorf("gap between chunk %d end and chunk %d start", i-1, i)
			}
		}
	}
}

func TestSplitTextIdempotent(t *testing.T) {
	cfg := DefaultChunkerConfig()
	text := strings.Repeat("Education loan interest is subsidised during moratorium. ", 60)

	first := SplitText(text, cfg)
	second := SplitText(text, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Error("chunking the same text twice produced different sequences")
	}
}

func TestSplitTextNoDuplicateFinalWindow(t *testing.T) {
	// Text length chosen so the final window lands exactly on the end at a
	// stride boundary; a naive loop emits it twice.
	cfg := ChunkerConfig{ChunkSize: 100, Overlap: 0}
	text := strings.Repeat("b", 200)

	chunks := SplitText(text, cfg)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Start == chunks[1].Start {
		t.Error("final window emitted twice")
	}
}

func TestSplitTextMultibyte(t *testing.T) {
	cfg := ChunkerConfig{ChunkSize: 100, Overlap: 10}
	text := strings.Repeat("学費ローンの返済条件。", 30)

	for _, c := range SplitText(text, cfg) {
		if !strings.HasPrefix(string([]rune(text)[c.Start:c.End]), c.Text[:1]) {
			t.Fatal("chunk text does not match its offsets")
		}
	}
}

func TestChunkerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkerConfig
		wantErr bool
	}{
		{"default is valid", DefaultChunkerConfig(), false},
		{"too small", ChunkerConfig{ChunkSize: 50, Overlap: 10}, true},
		{"overlap equals size", ChunkerConfig{ChunkSize: 200, Overlap: 200}, true},
		{"negative overlap", ChunkerConfig{ChunkSize: 200, Overlap: -1}, true},
		{"zero overlap ok", ChunkerConfig{ChunkSize: 200, Overlap: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
