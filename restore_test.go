package settings_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/reoring/goskema-settings"
	"github.com/reoring/goskema-settings/schema"
)

func restorer(t *testing.T, prefix string) *settings.Restorer {
	t.Helper()
	flat, err := settings.BuildFlatMap(describe[App](t), settings.FlatOpt{Prefix: prefix})
	require.NoError(t, err)
	return settings.NewRestorer(flat, nil)
}

func TestRestore_SimpleKey(t *testing.T) {
	r := restorer(t, "APP")
	got, errs := r.Restore(envOf("APP_VAL", "10", "OTHER_VAL", "x", "APP_UNKNOWN", "y"))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"val": "10"}, got.Values)

	loc, err := got.Locate(settings.PathOf("val"))
	require.NoError(t, err)
	assert.Equal(t, "APP_VAL", loc.EnvKey)
	assert.Nil(t, loc.Span)

	_, err = got.Locate(settings.PathOf("db"))
	assert.ErrorIs(t, err, settings.ErrLocationNotFound)
}

func TestRestore_KeepsOriginalKeySpelling(t *testing.T) {
	r := restorer(t, "app")
	got, errs := r.Restore(envOf("App_Db_Host", "db.local"))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "db.local"}}, got.Values)
	loc, err := got.Locate(settings.PathOf("db", "host"))
	require.NoError(t, err)
	assert.Equal(t, "App_Db_Host", loc.EnvKey)
}

func TestRestore_InlineDocument(t *testing.T) {
	r := restorer(t, "APP")
	got, errs := r.Restore(envOf("APP_DB", `{"host": "x", "port": "bad"}`))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "x", "port": "bad"}}, got.Values)

	loc, err := got.Locate(settings.PathOf("db"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB", loc.EnvKey)
	assert.Nil(t, loc.Span)

	loc, err = got.Locate(settings.PathOf("db", "port"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB", loc.EnvKey)
	require.NotNil(t, loc.Span)
	assert.Equal(t, settings.Span{Line: 1, Col: 23, EndLine: 1, EndCol: 27, Offset: 22, EndOffset: 27}, *loc.Span)

	_, err = got.Locate(settings.PathOf("db", "missing"))
	assert.ErrorIs(t, err, settings.ErrLocationNotFound)
}

func TestRestore_FieldOverridesInlineDocument(t *testing.T) {
	r := restorer(t, "APP")
	got, errs := r.Restore(envOf("APP_DB", `{"host": "a", "port": 1}`, "APP_DB_HOST", "b"))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "b", "port": settings.Number("1")}}, got.Values)

	loc, err := got.Locate(settings.PathOf("db", "host"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB_HOST", loc.EnvKey)
	assert.Nil(t, loc.Span)

	loc, err = got.Locate(settings.PathOf("db", "port"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB", loc.EnvKey)
	assert.NotNil(t, loc.Span)
}

func TestRestore_InlineDocumentReplacesEarlierFields(t *testing.T) {
	r := restorer(t, "APP")
	got, errs := r.Restore(envOf("APP_DB_HOST", "b", "APP_DB", `{"port": 1}`))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"port": settings.Number("1")}}, got.Values)
	_, err := got.Locate(settings.PathOf("db", "host"))
	assert.ErrorIs(t, err, settings.ErrLocationNotFound)
}

func TestRestore_LaterKeyWins(t *testing.T) {
	r := restorer(t, "APP")
	got, errs := r.Restore(envOf("APP_VAL", "1", "app_val", "2"))
	require.Empty(t, errs)
	assert.Equal(t, "2", got.Values["val"])
	loc, err := got.Locate(settings.PathOf("val"))
	require.NoError(t, err)
	assert.Equal(t, "app_val", loc.EnvKey)
}

type Required struct {
	Baz DB `settings:"baz,required"`
}

func TestRestore_CannotParseValue(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[Required](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, nil).Restore(envOf("APP_BAZ", "not a document"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], settings.ErrCannotParseValue)

	var re *settings.RestoreError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, "APP_BAZ", re.Key)
	assert.Equal(t, settings.PathOf("baz"), re.Path)
	assert.Error(t, re.Cause)
	assert.NotContains(t, got.Values, "baz")

	// a JSON scalar is not a document either
	_, errs = settings.NewRestorer(flat, nil).Restore(envOf("APP_BAZ", "42"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], settings.ErrCannotParseValue)
}

func TestRestore_AssignBeyondSimpleValue(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[WithUnions](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, nil).Restore(envOf("APP_FOO", "scalar", "APP_FOO_BAR", "val2"))
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], settings.ErrAssignBeyondSimpleValue))
	var re *settings.RestoreError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, "APP_FOO_BAR", re.Key)
	assert.Equal(t, settings.PathOf("foo", "bar"), re.Path)
	assert.Equal(t, "scalar", got.Values["foo"])

	it := re.Issue()
	assert.Equal(t, settings.CodeAssignBeyondSimpleValue, it.Code)
	require.NotNil(t, it.Source)
	assert.Equal(t, "APP_FOO_BAR", it.Source.EnvKey)
}

func TestRestore_TOMLInline(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[App](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, settings.TOMLInline).Restore(envOf("APP_DB", "host = \"t\"\nport = 5"))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "t", "port": settings.Number("5")}}, got.Values)

	loc, err := got.Locate(settings.PathOf("db", "port"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB", loc.EnvKey)
	assert.Nil(t, loc.Span)
}

func TestEnvFromMap_Sorted(t *testing.T) {
	got := settings.EnvFromMap(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, envOf("A", "1", "B", "2", "C", "3"), got)
}

type Ported struct {
	Ports  []int          `settings:"ports"`
	Limits map[string]int `settings:"limits"`
}

func TestRestore_LocateBelowPlainValue(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[Ported](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, nil).Restore(envOf("APP_PORTS", `[1,"x"]`, "APP_LIMITS", `{"a":"y"}`))
	require.Empty(t, errs)
	assert.Equal(t, `[1,"x"]`, got.Values["ports"])

	loc, err := got.Locate(settings.PathOf("ports", 1))
	require.NoError(t, err)
	assert.Equal(t, "APP_PORTS", loc.EnvKey)
	assert.Nil(t, loc.Span)

	loc, err = got.Locate(settings.PathOf("limits", "a"))
	require.NoError(t, err)
	assert.Equal(t, "APP_LIMITS", loc.EnvKey)
}

type Leaf struct {
	X int `settings:"x"`
}

type Mid struct {
	Sub Leaf `settings:"sub"`
}

type Deep struct {
	Name string `settings:"name"`
	DB   Mid    `settings:"db"`
}

func TestRestore_DeeperInlineDocumentWins(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[Deep](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, nil).Restore(envOf(
		"APP_DB", `{"sub":{"x":1}}`,
		"APP_DB_SUB", `{"x":"bad"}`,
	))
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"db": map[string]any{"sub": map[string]any{"x": "bad"}}}, got.Values)

	loc, err := got.Locate(settings.PathOf("db", "sub", "x"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB_SUB", loc.EnvKey)
	require.NotNil(t, loc.Span)
	assert.Equal(t, 5, loc.Span.Offset)
	assert.Equal(t, 10, loc.Span.EndOffset)

	loc, err = got.Locate(settings.PathOf("db", "sub"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB_SUB", loc.EnvKey)
	assert.Nil(t, loc.Span)
}

func TestRestore_LocateBelowScalarOfInlineDocument(t *testing.T) {
	flat, err := settings.BuildFlatMap(describe[Deep](t), settings.FlatOpt{Prefix: "APP"})
	require.NoError(t, err)
	got, errs := settings.NewRestorer(flat, nil).Restore(envOf("APP_DB", `{"sub":"x"}`))
	require.Empty(t, errs)

	loc, err := got.Locate(settings.PathOf("db", "sub", "x"))
	require.NoError(t, err)
	assert.Equal(t, "APP_DB", loc.EnvKey)
	require.NotNil(t, loc.Span)
	assert.Equal(t, 7, loc.Span.Offset)

	_, err = got.Locate(settings.PathOf("db", "other", "x"))
	assert.ErrorIs(t, err, settings.ErrLocationNotFound)
}

// envFromValue writes every leaf of v as one variable under prefix.
func envFromValue(t *testing.T, typ *schema.Type, key string, v reflect.Value, out *[]settings.EnvVar) {
	t.Helper()
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	switch typ.Kind {
	case schema.Object:
		for _, f := range typ.Fields {
			envFromValue(t, f.Type, key+"_"+strings.ToUpper(f.Key), v.FieldByIndex(f.Index), out)
		}
	case schema.Union:
		for _, a := range typ.Alternatives {
			if a.Type.GoType == v.Type() {
				envFromValue(t, a.Type, key, v, out)
				return
			}
		}
		t.Fatalf("%s is not an alternative of %s", v.Type(), typ.GoType)
	default:
		*out = append(*out, settings.EnvVar{Key: key, Value: fmt.Sprint(v.Interface())})
	}
}

func roundTrip[T any](t *testing.T, want T) {
	t.Helper()
	reg := registry(t)
	typ, err := schema.DescribeOf[T](reg)
	require.NoError(t, err)
	var vars []settings.EnvVar
	envFromValue(t, typ, "APP", reflect.ValueOf(want), &vars)
	require.NotEmpty(t, vars)

	got, err := settings.Load[T](context.Background(), settings.NoContent(), settings.Options{
		LoadEnv:   true,
		EnvPrefix: "APP",
		Environ:   vars,
		Registry:  reg,
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestore_RoundTrip(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"flat and nested": func(t *testing.T) {
			roundTrip(t, App{Val: 3, DB: DB{Host: "db.local", Port: 5432}})
		},
		"two levels": func(t *testing.T) {
			roundTrip(t, Deep{Name: "n", DB: Mid{Sub: Leaf{X: -7}}})
		},
		"object and plain union members": func(t *testing.T) {
			roundTrip(t, WithUnions{Store: &Local{Dir: "/srv", Region: "eu"}, Foo: BucketName("logs")})
		},
		"object members on both unions": func(t *testing.T) {
			roundTrip(t, WithUnions{Store: S3{Bucket: "b", Region: "us"}, Foo: Bucket{Bar: "x"}})
		},
	}
	for name, run := range cases {
		t.Run(name, run)
	}
}
