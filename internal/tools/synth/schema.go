package synth

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
)

// Param is one inferred parameter of a synthesized tool.
type Param struct {
	Name     string
	Type     string // JSON schema primitive
	Required bool
	Default  reflect.Value // valid only when !Required
}

// parseEntryFunc finds the single exported function declared by the source
// and returns its name plus the declared parameter names, in order.
func parseEntryFunc(source string) (funcName string, paramNames []string, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", wrapSource(source), 0)
	if err != nil {
		return "", nil, fmt.Errorf("source does not parse: %w", err)
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !fn.Name.IsExported() {
			continue
		}
		if funcName != "" {
			return "", nil, fmt.Errorf("source declares more than one exported function (%s and %s)", funcName, fn.Name.Name)
		}
		funcName = fn.Name.Name
		for _, field := range fn.Type.Params.List {
			for _, ident := range field.Names {
				paramNames = append(paramNames, ident.Name)
			}
		}
	}
	if funcName == "" {
		return "", nil, fmt.Errorf("source must declare exactly one exported function")
	}
	return funcName, paramNames, nil
}

// schemaType maps a native parameter kind to a JSON schema primitive.
// Anything unrecognized is treated as a string.
func schemaType(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// buildSchemaJSON renders the inferred parameters as a JSON schema document.
func buildSchemaJSON(params []Param) (string, error) {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = map[string]any{"type": p.Type}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	if required == nil {
		required = []string{}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	out, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// defaultVarName maps a parameter to its optional package-level default
// variable: parameter `maxLines` defaults from `var DefaultMaxLines = ...`.
func defaultVarName(param string) string {
	return "Default" + strings.ToUpper(param[:1]) + param[1:]
}

// convertArg coerces a JSON-decoded argument to the parameter's native type.
func convertArg(value any, t reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type() == t {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) {
		// JSON numbers arrive as float64; this also covers named types.
		return v.Convert(t), nil
	}

	switch t.Kind() {
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected array, got %T", value)
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			ev, err := convertArg(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		entries, ok := value.(map[string]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected object, got %T", value)
		}
		out := reflect.MakeMapWithSize(t, len(entries))
		for k, item := range entries {
			kv, err := convertArg(k, t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			ev, err := convertArg(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(kv, ev)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, t)
}

// wrapSource puts the tool source into a package if it is not already in one.
func wrapSource(source string) string {
	if strings.Contains(source, "package ") {
		return source
	}
	return "package dynamic\n\n" + source
}
