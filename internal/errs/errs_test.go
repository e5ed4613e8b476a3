package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchByKind(t *testing.T) {
	err := NotFound("issue_loan", "member", "U1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicate))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestOverdueCarriesDays(t *testing.T) {
	err := fmt.Errorf("renew: %w", Overdue("renew_loan", "P00001", 4))

	days, ok := OverdueDays(err)
	assert.True(t, ok)
	assert.Equal(t, 4, days)

	_, ok = OverdueDays(Validation("x", "bad"))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("return_loan", "loan", "P00009")
	assert.Equal(t, "return_loan: loan P00009: not found", err.Error())

	err2 := Validation("add_item", "title must not be empty")
	assert.Equal(t, "add_item: title must not be empty", err2.Error())
}

func TestKindRoundTrip(t *testing.T) {
	for k := KindUnknown; k <= KindOverdue; k++ {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("nope"))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
