// Package mocks holds testify mocks for the ports, with typed expecters.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/autoseed-cli/internal/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

type MockAccountRepository struct {
	mock.Mock
}

func NewMockAccountRepository(t testingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockAccountRepositoryExpecter struct {
	mock *mock.Mock
}

func (m *MockAccountRepository) EXPECT() *MockAccountRepositoryExpecter {
	return &MockAccountRepositoryExpecter{mock: &m.Mock}
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	ret := m.Called(ctx, id)
	account, _ := ret.Get(0).(domain.Account)
	return account, ret.Error(1)
}

func (e *MockAccountRepositoryExpecter) GetByID(ctx interface{}, id interface{}) *mock.Call {
	return e.mock.On("GetByID", ctx, id)
}

func (m *MockAccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	ret := m.Called(ctx)
	accounts, _ := ret.Get(0).([]domain.Account)
	return accounts, ret.Error(1)
}

func (e *MockAccountRepositoryExpecter) List(ctx interface{}) *mock.Call {
	return e.mock.On("List", ctx)
}

func (m *MockAccountRepository) Save(ctx context.Context, account domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (e *MockAccountRepositoryExpecter) Save(ctx interface{}, account interface{}) *mock.Call {
	return e.mock.On("Save", ctx, account)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id domain.AccountID) error {
	return m.Called(ctx, id).Error(0)
}

func (e *MockAccountRepositoryExpecter) Delete(ctx interface{}, id interface{}) *mock.Call {
	return e.mock.On("Delete", ctx, id)
}

type MockSecretStore struct {
	mock.Mock
}

func NewMockSecretStore(t testingT) *MockSecretStore {
	m := &MockSecretStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockSecretStoreExpecter struct {
	mock *mock.Mock
}

func (m *MockSecretStore) EXPECT() *MockSecretStoreExpecter {
	return &MockSecretStoreExpecter{mock: &m.Mock}
}

func (m *MockSecretStore) Get(ctx context.Context, key string) (string, error) {
	ret := m.Called(ctx, key)
	return ret.String(0), ret.Error(1)
}

func (e *MockSecretStoreExpecter) Get(ctx interface{}, key interface{}) *mock.Call {
	return e.mock.On("Get", ctx, key)
}

func (m *MockSecretStore) Put(ctx context.Context, key string, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (e *MockSecretStoreExpecter) Put(ctx interface{}, key interface{}, value interface{}) *mock.Call {
	return e.mock.On("Put", ctx, key, value)
}

func (m *MockSecretStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (e *MockSecretStoreExpecter) Delete(ctx interface{}, key interface{}) *mock.Call {
	return e.mock.On("Delete", ctx, key)
}

type MockClock struct {
	mock.Mock
}

func NewMockClock(t testingT) *MockClock {
	m := &MockClock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockClockExpecter struct {
	mock *mock.Mock
}

func (m *MockClock) EXPECT() *MockClockExpecter {
	return &MockClockExpecter{mock: &m.Mock}
}

func (m *MockClock) Now() time.Time {
	now, _ := m.Called().Get(0).(time.Time)
	return now
}

func (e *MockClockExpecter) Now() *mock.Call {
	return e.mock.On("Now")
}
