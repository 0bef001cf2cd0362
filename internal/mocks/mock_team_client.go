// Package mocks holds testify mocks shared across package tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zjrosen/linearmcp/internal/linear"
)

// MockTeamClient is a testify mock of workspace.TeamClient.
type MockTeamClient struct {
	mock.Mock
}

// NewMockTeamClient creates a MockTeamClient whose expectations are asserted
// when the test ends.
func NewMockTeamClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTeamClient {
	m := &MockTeamClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTeamClient) GetTeamByKey(ctx context.Context, key string) (*linear.Team, error) {
	args := m.Called(ctx, key)
	var team *linear.Team
	if v := args.Get(0); v != nil {
		team = v.(*linear.Team)
	}
	return team, args.Error(1)
}

func (m *MockTeamClient) ListTeams(ctx context.Context) ([]linear.Team, error) {
	args := m.Called(ctx)
	var teams []linear.Team
	if v := args.Get(0); v != nil {
		teams = v.([]linear.Team)
	}
	return teams, args.Error(1)
}

func (m *MockTeamClient) GetIssue(ctx context.Context, identifier string) (*linear.Issue, error) {
	args := m.Called(ctx, identifier)
	var issue *linear.Issue
	if v := args.Get(0); v != nil {
		issue = v.(*linear.Issue)
	}
	return issue, args.Error(1)
}

func (m *MockTeamClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
