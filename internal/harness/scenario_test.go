package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/payment_closes_job.yaml")
	require.NoError(t, err)

	assert.Equal(t, "payment_closes_job", s.Name)
	require.Len(t, s.Setup, 1)
	assert.Equal(t, "create_job", s.Setup[0].Invoke)
	assert.Equal(t, "job", s.Setup[0].As)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "$job", s.Flow[0].Args["job"])
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, "Success", s.Flow[0].Expect.Case)
	require.NotEmpty(t, s.Assertions)
	assert.Equal(t, AssertJob, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: y\nflow:\n  - invoke: reset\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "x", s.Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown field",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nasertions: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			src:  "description: y\nflow: [{invoke: reset}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			src:  "name: x\nflow: [{invoke: reset}]\n",
			want: "description is required",
		},
		{
			name: "empty flow",
			src:  "name: x\ndescription: y\n",
			want: "flow list is required",
		},
		{
			name: "unknown operation",
			src:  "name: x\ndescription: y\nflow: [{invoke: launch_rocket}]\n",
			want: `unknown operation "launch_rocket"`,
		},
		{
			name: "empty expect case",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset, expect: {result: {a: 1}}}]\n",
			want: "expect.case is required",
		},
		{
			name: "expect in setup",
			src:  "name: x\ndescription: y\nsetup: [{invoke: reset, expect: {case: Success}}]\nflow: [{invoke: reset}]\n",
			want: "setup steps cannot have expect",
		},
		{
			name: "bad now",
			src:  "name: x\ndescription: y\nnow: yesterday\nflow: [{invoke: reset}]\n",
			want: "now:",
		},
		{
			name: "unbound assertion ref",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nassertions: [{type: job, ref: j, expect: {status: open}}]\n",
			want: `ref "j" is not bound`,
		},
		{
			name: "unknown collection",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nassertions: [{type: count, collection: invoices, count: 0}]\n",
			want: `unknown collection "invoices"`,
		},
		{
			name: "count without count",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nassertions: [{type: count, collection: jobs}]\n",
			want: "count is required",
		},
		{
			name: "directory kind",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nassertions: [{type: directory, kind: vendor}]\n",
			want: "kind must be client or supplier",
		},
		{
			name: "unknown assertion",
			src:  "name: x\ndescription: y\nflow: [{invoke: reset}]\nassertions: [{type: vibes}]\n",
			want: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
