package errors

import (
	stdErrors "errors"
	"io/fs"
	"testing"

	"github.com/shoenig/test/must"
)

func TestCombine(t *testing.T) {
	errA := New("a")
	errB := Newf("b=%d", 2)

	for name, test := range map[string]struct {
		errs []error
		want string
	}{
		"none":     {errs: nil, want: ""},
		"all nil":  {errs: []error{nil, nil}, want: ""},
		"single":   {errs: []error{nil, errA}, want: "a"},
		"multiple": {errs: []error{errA, nil, errB}, want: "a; b=2"},
	} {
		t.Run(name, func(t *testing.T) {
			err := Combine(test.errs...)
			if test.want == "" {
				must.NoError(t, err)
				return
			}
			must.EqError(t, err, test.want)
		})
	}
}

func TestCombineKeepsChain(t *testing.T) {
	err := Combine(New("first"), Wrapf(fs.ErrNotExist, "open %s", "config.jsonnet"))
	must.ErrorIs(t, err, fs.ErrNotExist)
	must.True(t, stdErrors.Is(err, fs.ErrNotExist))
}

func TestWrap(t *testing.T) {
	err := Wrap(fs.ErrPermission, "read config")
	must.EqError(t, err, "read config: permission denied")
	must.ErrorIs(t, err, fs.ErrPermission)
}
