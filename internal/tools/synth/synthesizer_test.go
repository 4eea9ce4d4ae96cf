package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/buildmedic/buildmedic/internal/engine"
)

const reverseSource = `func Reverse(input string) string {
	runes := []rune(input)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}`

func TestSynthesizeAndInvoke(t *testing.T) {
	s := NewSynthesizer(nil)

	tool, cached, err := s.Synthesize("reverse_string", reverseSource, "reverses text")
	if err != nil {
		t.Fatalf("synthesis failed: %v", err)
	}
	if cached {
		t.Error("first synthesis must not be a cache hit")
	}
	if tool.Origin != engine.OriginSynthesized {
		t.Errorf("origin = %s", tool.Origin)
	}
	if tool.SourceHash != HashSource(reverseSource) {
		t.Error("source hash mismatch")
	}

	out, err := tool.Fn(context.Background(), map[string]any{"input": "abc"})
	if err != nil {
		t.Fatalf("invocation failed: %v", err)
	}
	if out != "cba" {
		t.Errorf("out = %q, want %q", out, "cba")
	}
}

func TestSynthesizeIdempotent(t *testing.T) {
	s := NewSynthesizer(nil)

	compiles := 0
	inner := s.compileFn
	s.compileFn = func(source string) (*compiledTool, error) {
		compiles++
		return inner(source)
	}

	if _, cached, err := s.Synthesize("reverse_string", reverseSource, ""); err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	if _, cached, err := s.Synthesize("reverse_string", reverseSource, ""); err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if compiles != 1 {
		t.Errorf("compiles = %d, want 1", compiles)
	}

	// Different source under the same name is a new tool, not a hit.
	other := strings.Replace(reverseSource, "Reverse", "Backwards", 1)
	if _, cached, err := s.Synthesize("reverse_string", other, ""); err != nil || cached {
		t.Fatalf("changed source: cached=%v err=%v", cached, err)
	}
	if compiles != 2 {
		t.Errorf("compiles = %d, want 2", compiles)
	}
}

func TestSynthesizeOptionalParams(t *testing.T) {
	source := `var DefaultSep = "-"

func JoinWords(words []string, sep string) string {
	return strings.Join(words, sep)
}`
	source = "import \"strings\"\n\n" + source

	s := NewSynthesizer(nil)
	tool, _, err := s.Synthesize("join_words", source, "")
	if err != nil {
		t.Fatalf("synthesis failed: %v", err)
	}

	if !strings.Contains(tool.SchemaJSON, `"required":["words"]`) {
		t.Errorf("sep should be optional in schema: %s", tool.SchemaJSON)
	}

	out, err := tool.Fn(context.Background(), map[string]any{"words": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("invocation failed: %v", err)
	}
	if out != "a-b" {
		t.Errorf("out = %q, want a-b (default separator)", out)
	}

	out, err = tool.Fn(context.Background(), map[string]any{"words": []any{"a", "b"}, "sep": "+"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "a+b" {
		t.Errorf("out = %q, want a+b", out)
	}
}

func TestSynthesizeMissingRequiredArg(t *testing.T) {
	s := NewSynthesizer(nil)
	tool, _, err := s.Synthesize("reverse_string", reverseSource, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tool.Fn(context.Background(), map[string]any{}); err == nil {
		t.Error("missing required argument should error")
	}
}

func TestSynthesizeRejectsForbiddenImports(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name:   "os",
			source: "import \"os\"\n\nfunc ReadEnv(key string) string { return os.Getenv(key) }",
		},
		{
			name:   "net http",
			source: "import \"net/http\"\n\nfunc Fetch(url string) string { _, _ = http.Get(url); return \"\" }",
		},
		{
			name:   "os exec",
			source: "import \"os/exec\"\n\nfunc Sh(cmd string) string { _ = exec.Command(cmd); return \"\" }",
		},
	}

	s := NewSynthesizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Synthesize("bad_tool", tt.source, "")
			if err == nil || !strings.Contains(err.Error(), "forbidden imports") {
				t.Errorf("err = %v, want forbidden imports", err)
			}
		})
	}
}

func TestSynthesizeRejectsBadShape(t *testing.T) {
	s := NewSynthesizer(nil)

	t.Run("no exported function", func(t *testing.T) {
		_, _, err := s.Synthesize("t", "func helper() string { return \"\" }", "")
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("two exported functions", func(t *testing.T) {
		src := "func A() string { return \"\" }\n\nfunc B() string { return \"\" }"
		_, _, err := s.Synthesize("t", src, "")
		if err == nil || !strings.Contains(err.Error(), "more than one") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("does not parse", func(t *testing.T) {
		if _, _, err := s.Synthesize("t", "func Broken( {", ""); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCacheStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenCacheStore(dir + "/cache/tools.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	entry := CacheEntry{
		Name:        "reverse_string",
		Hash:        HashSource(reverseSource),
		Source:      reverseSource,
		Description: "reverses text",
	}
	if err := store.Put(entry); err != nil {
		t.Fatal(err)
	}
	// Identical write is a no-op, not a conflict.
	if err := store.Put(entry); err != nil {
		t.Fatalf("idempotent put failed: %v", err)
	}

	got, found, err := store.Get(entry.Name, entry.Hash)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Source != reverseSource || got.Description != "reverses text" {
		t.Errorf("entry = %+v", got)
	}

	if _, found, _ := store.Get("reverse_string", "wronghash"); found {
		t.Error("lookup with wrong hash should miss")
	}

	all, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("all = %d entries, want 1", len(all))
	}
}

func TestSynthesizerPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenCacheStore(dir + "/tools.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s := NewSynthesizer(store)
	if _, _, err := s.Synthesize("reverse_string", reverseSource, "reverses text"); err != nil {
		t.Fatal(err)
	}

	// A fresh synthesizer over the same store recovers the tool.
	s2 := NewSynthesizer(store)
	tools, err := s2.LoadCached()
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 || tools[0].Name != "reverse_string" {
		t.Fatalf("tools = %+v", tools)
	}

	out, err := tools[0].Fn(context.Background(), map[string]any{"input": "xy"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "yx" {
		t.Errorf("out = %q", out)
	}
}

func TestLoadCachedSkipsBrokenEntries(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenCacheStore(dir + "/tools.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	broken := "func Broken( {"
	if err := store.Put(CacheEntry{Name: "broken", Hash: HashSource(broken), Source: broken}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(CacheEntry{Name: "good", Hash: HashSource(reverseSource), Source: reverseSource}); err != nil {
		t.Fatal(err)
	}

	tools, err := NewSynthesizer(store).LoadCached()
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 || tools[0].Name != "good" {
		t.Errorf("tools = %+v, want only the compilable entry", tools)
	}
}
