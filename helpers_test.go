package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	settings "github.com/reoring/goskema-settings"
	"github.com/reoring/goskema-settings/schema"
)

type Plain struct {
	Name string `settings:"name"`
	Port int    `settings:"port"`
}

type DB struct {
	Host string `settings:"host" validate:"required"`
	Port int    `settings:"port" validate:"max=65535"`
}

type App struct {
	Val int `settings:"val"`
	DB  DB  `settings:"db"`
}

type Backend interface{ isBackend() }

type S3 struct {
	Bucket string `settings:"bucket,required"`
	Region string `settings:"region"`
}

type Local struct {
	Dir    string `settings:"dir,required"`
	Region string `settings:"region"`
}

type Named string

func (S3) isBackend()     {}
func (*Local) isBackend() {}
func (Named) isBackend()  {}

// Storage is a union that also accepts a plain name.
type Storage interface{ isStorage() }

type Bucket struct {
	Bar string `settings:"bar"`
}

type BucketName string

func (Bucket) isStorage()     {}
func (BucketName) isStorage() {}

type WithUnions struct {
	Store Backend `settings:"store"`
	Foo   Storage `settings:"foo"`
}

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, schema.RegisterUnion[Backend](r, S3{}, &Local{}))
	require.NoError(t, schema.RegisterUnion[Storage](r, Bucket{}, BucketName("")))
	return r
}

func describe[T any](t *testing.T) *schema.Type {
	t.Helper()
	d, err := schema.DescribeOf[T](registry(t))
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func envOf(kv ...string) []settings.EnvVar {
	out := make([]settings.EnvVar, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, settings.EnvVar{Key: kv[i], Value: kv[i+1]})
	}
	return out
}
