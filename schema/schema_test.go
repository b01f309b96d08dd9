package schema

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Common struct {
	Region string
}

type hidden struct {
	Zone string
}

type Database struct {
	Host string `settings:"hostname,required"`
	Port int    `default:"5432"`
}

type Config struct {
	Common
	hidden
	Name      string `json:"service_name,omitempty"`
	Mode      string `yaml:"run_mode"`
	HTTPPort  int
	Timeout   time.Duration
	Started   time.Time
	IP        net.IP
	Skip      string `settings:"-"`
	Database  *Database
	Replicas  []Database
	Labels    map[string]string
	Extra     any
	internal  int
	Backend   Backend
	Recursive *Config
}

type Backend interface{ backend() }

type S3 struct{ Bucket string }
type Local struct{ Dir string }
type Named string

func (S3) backend()     {}
func (*Local) backend() {}
func (Named) backend()  {}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterUnion[Backend](r, S3{}, &Local{}))
	return r
}

func TestDescribe_Object(t *testing.T) {
	d, err := DescribeOf[Config](newRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, Object, d.Kind)

	keys := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		"region", "zone", "service_name", "run_mode", "http_port", "timeout", "started", "ip",
		"database", "replicas", "labels", "extra", "backend", "recursive",
	}, keys)

	kinds := map[string]Kind{}
	for _, f := range d.Fields {
		kinds[f.Key] = f.Type.Kind
	}
	assert.Equal(t, Scalar, kinds["timeout"])
	assert.Equal(t, Scalar, kinds["started"])
	assert.Equal(t, Scalar, kinds["ip"])
	assert.Equal(t, Object, kinds["database"])
	assert.Equal(t, List, kinds["replicas"])
	assert.Equal(t, Map, kinds["labels"])
	assert.Equal(t, Any, kinds["extra"])
	assert.Equal(t, Union, kinds["backend"])

	rec, ok := d.Field("recursive")
	require.True(t, ok)
	assert.Same(t, d, rec.Type)

	region, _ := d.Field("region")
	assert.Equal(t, []int{0, 0}, region.Index)
}

func TestDescribe_FieldOptions(t *testing.T) {
	d, err := DescribeOf[Database](NewRegistry())
	require.NoError(t, err)
	host, ok := d.Field("hostname")
	require.True(t, ok)
	assert.True(t, host.Required)
	port, ok := d.Field("port")
	require.True(t, ok)
	assert.True(t, port.HasDefault)
	assert.Equal(t, "5432", port.Default)
}

func TestDescribe_Memoized(t *testing.T) {
	r := newRegistry(t)
	a, err := r.Describe(reflect.TypeOf(Config{}))
	require.NoError(t, err)
	b, err := r.Describe(reflect.TypeOf(&Config{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestUnionClassification(t *testing.T) {
	r := newRegistry(t)
	d, err := DescribeOf[Backend](r)
	require.NoError(t, err)
	assert.True(t, d.Complex())
	assert.True(t, d.ExclusivelyComplex())
	require.Len(t, d.Alternatives, 2)
	assert.False(t, d.Alternatives[0].Ptr)
	assert.True(t, d.Alternatives[1].Ptr)
	assert.Equal(t, "Local", d.Alternatives[1].Name())

	require.NoError(t, RegisterUnion[Backend](r, S3{}, Named("")))
	d, err = DescribeOf[Backend](r)
	require.NoError(t, err)
	assert.True(t, d.Complex())
	assert.False(t, d.ExclusivelyComplex())
	assert.Len(t, d.ObjectAlternatives(), 1)

	require.NoError(t, RegisterUnion[Backend](r, Named("")))
	d, err = DescribeOf[Backend](r)
	require.NoError(t, err)
	assert.False(t, d.Complex())
}

func TestDescribe_Errors(t *testing.T) {
	r := NewRegistry()
	type badMap struct{ M map[int]string }
	_, err := DescribeOf[badMap](r)
	assert.Error(t, err)

	type unregistered struct{ B Backend }
	_, err = DescribeOf[unregistered](r)
	assert.ErrorContains(t, err, "not registered")

	type dupKeys struct {
		A string `json:"x"`
		B string `yaml:"x"`
	}
	_, err = DescribeOf[dupKeys](r)
	assert.ErrorContains(t, err, "more than one field")

	assert.Error(t, RegisterUnion[Backend](r, 42))
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Name":       "name",
		"HTTPPort":   "http_port",
		"MaxConns":   "max_conns",
		"ID":         "id",
		"UserID":     "user_id",
		"Level2Size": "level2_size",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

type brokenParent struct {
	Child brokenChild
	Feed  chan int
}

type brokenChild struct {
	Back *brokenParent
	N    int
}

func TestDescribe_FailureDropsPartialDescriptions(t *testing.T) {
	r := NewRegistry()
	_, err := DescribeOf[brokenParent](r)
	require.Error(t, err)
	assert.Empty(t, r.types)

	_, err = DescribeOf[brokenChild](r)
	assert.Error(t, err)

	_, err = DescribeOf[Database](r)
	require.NoError(t, err)
	assert.NotEmpty(t, r.types)
}
