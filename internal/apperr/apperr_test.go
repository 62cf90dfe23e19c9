package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(KindNotFound, 404, "list not found")
	wrapped := fmt.Errorf("delete list: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNetwork(wrapped))
	assert.Equal(t, "list not found", Message(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestNetworkUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Network(cause)

	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStorageMessage(t *testing.T) {
	err := Storage("save list", errors.New("disk full"))
	assert.True(t, IsStorage(err))
	assert.Equal(t, "cannot save locally (save list)", Message(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network_unavailable", KindNetwork.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
