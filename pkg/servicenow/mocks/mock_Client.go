// Package mocks provides test doubles for the servicenow client.
package mocks

import (
	"context"

	servicenow "github.com/sells-group/ownership-cli/pkg/servicenow"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}


// Ping provides a mock function with given fields: ctx
func (_m *MockClient) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// FetchCIs provides a mock function with given fields: ctx, limit
func (_m *MockClient) FetchCIs(ctx context.Context, limit int) ([]servicenow.Record, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for FetchCIs")
	}

	var r0 []servicenow.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]servicenow.Record, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []servicenow.Record); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]servicenow.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FetchCIAudit provides a mock function with given fields: ctx, limit
func (_m *MockClient) FetchCIAudit(ctx context.Context, limit int) ([]servicenow.Record, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for FetchCIAudit")
	}

	var r0 []servicenow.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]servicenow.Record, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []servicenow.Record); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]servicenow.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FetchUserAudit provides a mock function with given fields: ctx, lookbackDays, limit
func (_m *MockClient) FetchUserAudit(ctx context.Context, lookbackDays int, limit int) ([]servicenow.Record, error) {
	ret := _m.Called(ctx, lookbackDays, limit)

	if len(ret) == 0 {
		panic("no return value specified for FetchUserAudit")
	}

	var r0 []servicenow.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int, int) ([]servicenow.Record, error)); ok {
		return rf(ctx, lookbackDays, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int, int) []servicenow.Record); ok {
		r0 = rf(ctx, lookbackDays, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]servicenow.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int, int) error); ok {
		r1 = rf(ctx, lookbackDays, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FetchUsers provides a mock function with given fields: ctx, limit
func (_m *MockClient) FetchUsers(ctx context.Context, limit int) ([]servicenow.Record, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for FetchUsers")
	}

	var r0 []servicenow.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]servicenow.Record, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []servicenow.Record); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]servicenow.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetCI provides a mock function with given fields: ctx, ciID
func (_m *MockClient) GetCI(ctx context.Context, ciID string) (servicenow.Record, error) {
	ret := _m.Called(ctx, ciID)

	if len(ret) == 0 {
		panic("no return value specified for GetCI")
	}

	var r0 servicenow.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (servicenow.Record, error)); ok {
		return rf(ctx, ciID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) servicenow.Record); ok {
		r0 = rf(ctx, ciID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(servicenow.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, ciID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FindUser provides a mock function with given fields: ctx, username
func (_m *MockClient) FindUser(ctx context.Context, username string) (*servicenow.User, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for FindUser")
	}

	var r0 *servicenow.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*servicenow.User, error)); ok {
		return rf(ctx, username)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *servicenow.User); ok {
		r0 = rf(ctx, username)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*servicenow.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, username)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateAssignedTo provides a mock function with given fields: ctx, ciID, userSysID
func (_m *MockClient) UpdateAssignedTo(ctx context.Context, ciID string, userSysID string) error {
	ret := _m.Called(ctx, ciID, userSysID)

	if len(ret) == 0 {
		panic("no return value specified for UpdateAssignedTo")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, ciID, userSysID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// InstanceURL provides a mock function with no fields
func (_m *MockClient) InstanceURL() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for InstanceURL")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ servicenow.Client = (*MockClient)(nil)
