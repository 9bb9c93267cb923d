package errors

import (
	"fmt"
	"strings"
)

func New(msg string) error {
	return fmt.Errorf("%s", msg)
}

func Newf(msg string, a ...any) error {
	return fmt.Errorf(msg, a...)
}

func Wrap(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}

func Wrapf(err error, msg string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, a...), err)
}

// Combine multiple errs into single one. If no errors are passed or all of them
// are nil, nil is returned. Combined errors are still matched by errors.Is/As.
func Combine(errs ...error) error {
	errList := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}

	switch len(errList) {
	case 0:
		return nil
	case 1:
		return errList[0]
	default:
		return combined(errList)
	}
}

type combined []error

func (errs combined) Error() string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (errs combined) Unwrap() []error {
	return errs
}
