// Package synth compiles model-written Go source into invocable tools.
//
// Source runs inside a yaegi interpreter restricted to a whitelist of
// stdlib packages, never as native code: no filesystem, process, or network
// access. Compiled tools are cached in memory by content hash and persisted
// through a CacheStore so identical source is never compiled twice.
package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/buildmedic/buildmedic/internal/engine"
)

const invokeTimeout = 10 * time.Second

// allowedPackages is the import whitelist for synthesized source. Anything
// touching the OS, processes, or the network is rejected up front.
var allowedPackages = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"unicode":         true,
	"path":            true,
	"path/filepath":   true,
}

// Synthesizer turns source text into registered tools.
type Synthesizer struct {
	store    *CacheStore
	compiled map[string]*compiledTool // keyed by name + ":" + hash

	// compileFn is swappable in tests to observe compilation counts.
	compileFn func(source string) (*compiledTool, error)
}

type compiledTool struct {
	funcName string
	fn       reflect.Value
	params   []Param
	schema   string
}

// NewSynthesizer creates a synthesizer backed by the given cache store.
// The store may be nil; synthesis then works without persistence.
func NewSynthesizer(store *CacheStore) *Synthesizer {
	s := &Synthesizer{
		store:    store,
		compiled: make(map[string]*compiledTool),
	}
	s.compileFn = compile
	return s
}

// HashSource returns the content hash that keys the tool cache.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Synthesize compiles source into a tool. A repeated call with identical
// name and byte-identical source is a no-op served from the cache. The
// returned bool reports whether the cache was hit.
func (s *Synthesizer) Synthesize(name, source, description string) (engine.Tool, bool, error) {
	hash := HashSource(source)
	key := name + ":" + hash

	if ct, ok := s.compiled[key]; ok {
		return s.makeTool(name, description, source, hash, ct), true, nil
	}

	ct, err := s.compileFn(source)
	if err != nil {
		return engine.Tool{}, false, err
	}
	s.compiled[key] = ct

	if s.store != nil {
		entry := CacheEntry{
			Name:        name,
			Hash:        hash,
			Source:      source,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.store.Put(entry); err != nil {
			return engine.Tool{}, false, fmt.Errorf("tool compiled but cache write failed: %w", err)
		}
	}

	return s.makeTool(name, description, source, hash, ct), false, nil
}

// LoadCached compiles every persisted tool back into the registry form.
// Entries that no longer compile are skipped rather than fatal; the cache
// must never prevent a session from starting.
func (s *Synthesizer) LoadCached() ([]engine.Tool, error) {
	if s.store == nil {
		return nil, nil
	}
	entries, err := s.store.All()
	if err != nil {
		return nil, err
	}

	var tools []engine.Tool
	for _, e := range entries {
		ct, err := s.compileFn(e.Source)
		if err != nil {
			continue
		}
		s.compiled[e.Name+":"+e.Hash] = ct
		t := s.makeTool(e.Name, e.Description, e.Source, e.Hash, ct)
		t.CreatedAt = e.CreatedAt
		tools = append(tools, t)
	}
	return tools, nil
}

func (s *Synthesizer) makeTool(name, description, source, hash string, ct *compiledTool) engine.Tool {
	return engine.Tool{
		Name:        name,
		Description: description,
		SchemaJSON:  ct.schema,
		Origin:      engine.OriginSynthesized,
		SourceHash:  hash,
		CreatedAt:   time.Now().UTC(),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return invoke(ctx, ct, args)
		},
	}
}

// compile validates, interprets, and reflects over the source.
func compile(source string) (*compiledTool, error) {
	if err := validateImports(source); err != nil {
		return nil, err
	}

	wrapped := wrapSource(source)
	pkgName, err := packageName(wrapped)
	if err != nil {
		return nil, err
	}
	funcName, paramNames, err := parseEntryFunc(source)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}

	fnVal, err := i.Eval(pkgName + "." + funcName)
	if err != nil {
		return nil, fmt.Errorf("entry function %s not found: %w", funcName, err)
	}
	fn := fnVal
	fnType := fn.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", funcName)
	}
	if fnType.NumIn() != len(paramNames) {
		return nil, fmt.Errorf("parameter mismatch for %s: declared %d, reflected %d",
			funcName, len(paramNames), fnType.NumIn())
	}

	// A parameter with a package-level Default<Name> variable of the same
	// type is optional; its value substitutes when the argument is absent.
	params := make([]Param, len(paramNames))
	for idx, pname := range paramNames {
		pt := fnType.In(idx)
		p := Param{Name: pname, Type: schemaType(pt.Kind()), Required: true}
		if dv, derr := i.Eval(pkgName + "." + defaultVarName(pname)); derr == nil && dv.IsValid() {
			if dv.Type().ConvertibleTo(pt) {
				p.Required = false
				p.Default = dv.Convert(pt)
			}
		}
		params[idx] = p
	}

	schema, err := buildSchemaJSON(params)
	if err != nil {
		return nil, err
	}

	return &compiledTool{
		funcName: funcName,
		fn:       fn,
		params:   params,
		schema:   schema,
	}, nil
}

// invoke calls a compiled tool with JSON-shaped arguments. Panics inside
// interpreted code and timeouts surface as ordinary errors.
func invoke(ctx context.Context, ct *compiledTool, args map[string]any) (out string, err error) {
	fnType := ct.fn.Type()
	in := make([]reflect.Value, len(ct.params))
	for idx, p := range ct.params {
		raw, present := args[p.Name]
		if !present {
			if p.Required {
				return "", fmt.Errorf("missing required argument %q", p.Name)
			}
			in[idx] = p.Default
			continue
		}
		v, convErr := convertArg(raw, fnType.In(idx))
		if convErr != nil {
			return "", fmt.Errorf("argument %q: %w", p.Name, convErr)
		}
		in[idx] = v
	}

	cctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, callErr := callReflected(ct.fn, in)
		resCh <- result{out: out, err: callErr}
	}()

	select {
	case res := <-resCh:
		return res.out, res.err
	case <-cctx.Done():
		return "", fmt.Errorf("tool execution timed out: %w", cctx.Err())
	}
}

// callReflected invokes fn and normalizes the return shape. Supported:
// (string), (string, error), or any single value rendered with %v.
func callReflected(fn reflect.Value, in []reflect.Value) (string, error) {
	outs := fn.Call(in)

	if n := len(outs); n > 0 {
		last := outs[n-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if !last.IsNil() {
				return "", last.Interface().(error)
			}
			outs = outs[:n-1]
		}
	}
	if len(outs) == 0 {
		return "", nil
	}
	if s, ok := outs[0].Interface().(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", outs[0].Interface()), nil
}

// validateImports rejects source importing anything off the whitelist.
func validateImports(source string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", wrapSource(source), parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("source does not parse: %w", err)
	}

	var forbidden []string
	for _, imp := range file.Imports {
		pkg := strings.Trim(imp.Path.Value, `"`)
		if !allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: safe stdlib only)", forbidden)
	}
	return nil
}

func packageName(wrapped string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", wrapped, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("source does not parse: %w", err)
	}
	return file.Name.Name, nil
}
