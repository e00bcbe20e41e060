package tinyfs_test

import (
	"syscall"
	"testing"

	"github.com/dargueta/tinyfs"
	"github.com/stretchr/testify/assert"
)

func TestDriverError__WithMessage(t *testing.T) {
	err := tinyfs.NewWithMessage(syscall.ENOENT, "/a/b/c")
	assert.Equal(t, "no such file or directory: /a/b/c", err.Error())
}

func TestDriverError__Unwrap(t *testing.T) {
	err := tinyfs.ErrNotFound()
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestDriverError__DefaultMessage(t *testing.T) {
	err := tinyfs.New(syscall.ENOSPC)
	assert.Equal(t, syscall.ENOSPC.Error(), err.Error())
}
