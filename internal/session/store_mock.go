package session

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockReader is a mock implementation of Reader for testing.
type MockReader struct {
	mock.Mock
}

var _ Reader = &MockReader{} // Compile-time check

// Snapshot implements the Reader interface.
func (m *MockReader) Snapshot(groupID uuid.UUID) (Snapshot, error) {
	args := m.Called(groupID)
	return args.Get(0).(Snapshot), args.Error(1)
}

// GroupVersion implements the Reader interface.
func (m *MockReader) GroupVersion(groupID uuid.UUID) (uint64, error) {
	args := m.Called(groupID)
	return args.Get(0).(uint64), args.Error(1)
}

// Groups implements the Reader interface.
func (m *MockReader) Groups(sessionID uuid.UUID) ([]Snapshot, error) {
	args := m.Called(sessionID)
	groups, _ := args.Get(0).([]Snapshot)
	return groups, args.Error(1)
}

// Session implements the Reader interface.
func (m *MockReader) Session(id uuid.UUID) (Session, error) {
	args := m.Called(id)
	return args.Get(0).(Session), args.Error(1)
}
