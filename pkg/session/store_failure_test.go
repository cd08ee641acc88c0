package session_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/iotctl/internal/mocks"
	"github.com/benmeehan/iotctl/pkg/encryption"
	"github.com/benmeehan/iotctl/pkg/session"
)

func TestFileStore_ReadAndDecryptFailures(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "/locked/session").Return(nil, os.ErrPermission).Once()
	fileOps.On("ReadFileRaw", "/locked/session").Return([]byte("not encrypted"), nil).Once()

	em := encryption.NewEncryptionManager(fileOps)
	require.NoError(t, em.InitializeWithKey(make([]byte, 32)))
	store := session.NewFileStore("/locked/session", fileOps, em)

	_, err := store.Load()
	assert.ErrorIs(t, err, os.ErrPermission)

	_, err = store.Load()
	assert.ErrorContains(t, err, "failed to decrypt session file")
	fileOps.AssertExpectations(t)
}

func TestFileStore_SaveWriteFailure(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("WriteFileRaw", "/ro/session", mock.AnythingOfType("[]uint8")).Return(os.ErrPermission)

	em := encryption.NewEncryptionManager(fileOps)
	require.NoError(t, em.InitializeWithKey(make([]byte, 32)))

	err := session.NewFileStore("/ro/session", fileOps, em).Save(&session.Record{Server: "s"})
	assert.ErrorContains(t, err, "failed to write session file")
}
