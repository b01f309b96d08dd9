package settings

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/goskema-settings/schema"
)

func TestSplitNamespace(t *testing.T) {
	got := splitNamespace("Config.Items[0].Tags[a.b].Name")
	assert.Equal(t, []nsToken{
		{text: "Config"},
		{text: "Items"},
		{text: "0", bracket: true},
		{text: "Tags"},
		{text: "a.b", bracket: true},
		{text: "Name"},
	}, got)
}

type nsItem struct {
	Name string `settings:"item_name"`
}

type nsBase struct {
	Region string `settings:"region"`
}

type nsConfig struct {
	nsBase
	Items []nsItem            `settings:"items"`
	Tags  map[string]nsItem   `settings:"tags"`
	Other map[string][]string `settings:"other"`
}

func TestNamespacePath(t *testing.T) {
	typ, err := schema.DescribeOf[nsConfig](schema.NewRegistry())
	require.NoError(t, err)
	cases := map[string]Path{
		"nsConfig.Items[2].Name":   PathOf("items", 2, "item_name"),
		"nsConfig.Tags[a.b].Name":  PathOf("tags", "a.b", "item_name"),
		"nsConfig.nsBase.Region":   PathOf("region"),
		"nsConfig.Other[k][1]":     PathOf("other", "k", 1),
		"nsConfig.Items[x].Name":   PathOf("items"),
		"nsConfig":                 nil,
	}
	for ns, want := range cases {
		assert.Equal(t, want, namespacePath(typ, reflect.Value{}, ns), ns)
	}

	v := nsConfig{Items: []nsItem{{}, {}, {}}, Tags: map[string]nsItem{"a.b": {}}}
	for ns, want := range cases {
		assert.Equal(t, want, namespacePath(typ, reflect.ValueOf(&v), ns), ns)
	}
}

type nsTarget interface{ isTarget() }

type nsDisk struct {
	Path string `settings:"disk_path" validate:"required"`
}

type nsBucket struct {
	Path string `settings:"object_prefix" validate:"required"`
}

func (nsDisk) isTarget()    {}
func (*nsBucket) isTarget() {}

type nsBackup struct {
	Target nsTarget `settings:"target"`
}

func TestNamespacePath_UnionMember(t *testing.T) {
	r := schema.NewRegistry()
	require.NoError(t, schema.RegisterUnion[nsTarget](r, nsDisk{}, &nsBucket{}))
	typ, err := schema.DescribeOf[nsBackup](r)
	require.NoError(t, err)

	disk := nsBackup{Target: nsDisk{}}
	assert.Equal(t, PathOf("target", "disk_path"), namespacePath(typ, reflect.ValueOf(disk), "nsBackup.Target.Path"))
	bucket := nsBackup{Target: &nsBucket{}}
	assert.Equal(t, PathOf("target", "object_prefix"), namespacePath(typ, reflect.ValueOf(bucket), "nsBackup.Target.Path"))

	iss := validateStruct(DefaultValidator(), typ, reflect.ValueOf(bucket))
	require.Len(t, iss, 1)
	assert.Equal(t, PathOf("target", "object_prefix"), iss[0].Path)
	assert.Equal(t, CodeRequired, iss[0].Code)
}

func TestParseInt(t *testing.T) {
	for in, want := range map[string]int64{"12": 12, "-3": -3, "1e3": 1000, "5.0": 5} {
		got, err := parseInt(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"1.5", "abc", ""} {
		_, err := parseInt(in)
		assert.Error(t, err, in)
	}
	for _, in := range []string{"1e30", "1e400", "-1e400", "99999999999999999999"} {
		_, err := parseInt(in)
		assert.ErrorIs(t, err, strconv.ErrRange, in)
	}
}

func TestBoolValue(t *testing.T) {
	for _, in := range []any{true, "1", "yes", "ON", "t"} {
		v, ok := boolValue(in)
		assert.True(t, ok, in)
		assert.True(t, v, in)
	}
	for _, in := range []any{false, "0", "no", "off", "F"} {
		v, ok := boolValue(in)
		assert.True(t, ok, in)
		assert.False(t, v, in)
	}
	_, ok := boolValue("maybe")
	assert.False(t, ok)
}
