package prompt

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journai/journai-ops/internal/config"
)

func TestQuestionValidator(t *testing.T) {
	errBad := errors.New("bad value")
	cases := []struct {
		name    string
		q       config.Question
		value   string
		wantErr bool
	}{
		{name: "required empty", q: config.Question{}, value: "", wantErr: true},
		{name: "optional empty", q: config.Question{Optional: true}, value: ""},
		{name: "no validator", q: config.Question{}, value: "anything"},
		{
			name:    "validator rejects",
			q:       config.Question{Validate: func(string) error { return errBad }},
			value:   "x",
			wantErr: true,
		},
		{
			name:  "optional empty skips validator",
			q:     config.Question{Optional: true, Validate: func(string) error { return errBad }},
			value: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := questionValidator(tc.q)(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsInteractive_NonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsInteractive(f))
	assert.False(t, IsInteractive(nil))
}

func TestNewHuh_Options(t *testing.T) {
	t.Setenv("ACCESSIBLE", "")
	assert.False(t, NewHuh().accessible)
	assert.True(t, NewHuh(WithAccessible(true)).accessible)
}
