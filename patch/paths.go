package patch

import (
	"reflect"
	"strings"
)

// AllJSONPointerPaths lists the JSON pointers of the exported struct fields
// of T, descending into nested structs.
func AllJSONPointerPaths[T any]() []string {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return []string{}
	}

	paths := make([]string, 0)
	collectPaths(typ, "", &paths, map[reflect.Type]bool{})
	return paths
}

// AllowedPaths is AllJSONPointerPaths as a lookup set.
func AllowedPaths[T any]() map[string]bool {
	allowed := make(map[string]bool)
	for _, path := range AllJSONPointerPaths[T]() {
		allowed[path] = true
	}
	return allowed
}

func collectPaths(typ reflect.Type, prefix string, paths *[]string, visited map[reflect.Type]bool) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct || visited[typ] {
		return
	}
	visited[typ] = true
	defer delete(visited, typ)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}
		fieldPath := prefix + "/" + name
		*paths = append(*paths, fieldPath)
		collectPaths(field.Type, fieldPath, paths, visited)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}
