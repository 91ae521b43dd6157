// Package storagetest holds the behaviour every Storage backend must share.
package storagetest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

// ContractSuite runs the shared Storage contract against a backend.
// Embed it and call SetupStore from SetupTest.
type ContractSuite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
}

// SetupStore binds the backend under test
func (s *ContractSuite) SetupStore(store storage.Storage) {
	s.Store = store
	s.Ctx = context.Background()
}

func (s *ContractSuite) create(username string, rank int64, token string) {
	err := s.Store.CreateUser(s.Ctx, &model.UserRecord{
		Username:     username,
		PasswordHash: "hash-" + username,
		Token:        token,
		Rank:         rank,
	})
	s.Require().NoError(err)
}

func (s *ContractSuite) TestCreateAndGetUser() {
	s.create("alice", 3, "tok-a")

	rec, err := s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", rec.Username)
	s.Equal("hash-alice", rec.PasswordHash)
	s.Equal("tok-a", rec.Token)
	s.Equal(int64(3), rec.Rank)
}

func (s *ContractSuite) TestGetUserNotFound() {
	_, err := s.Store.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ContractSuite) TestCreateDuplicateConflicts() {
	s.create("alice", 0, "")

	err := s.Store.CreateUser(s.Ctx, &model.UserRecord{Username: "alice", Rank: 99})
	s.ErrorIs(err, model.ErrConflict)

	rec, err := s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(0), rec.Rank)
}

func (s *ContractSuite) TestListUsersKeepsInsertionOrder() {
	s.create("carol", 1, "")
	s.create("alice", 9, "")
	s.create("bob", 5, "")

	users, err := s.Store.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal("carol", users[0].Username)
	s.Equal("alice", users[1].Username)
	s.Equal("bob", users[2].Username)
}

func (s *ContractSuite) TestListUsersEmpty() {
	users, err := s.Store.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(users)
}

func (s *ContractSuite) TestUpdateUser() {
	s.create("alice", 0, "old")

	err := s.Store.UpdateUser(s.Ctx, &model.UserRecord{
		Username:     "alice",
		PasswordHash: "hash-alice",
		Token:        "new",
		Rank:         12,
	})
	s.Require().NoError(err)

	rec, err := s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("new", rec.Token)
	s.Equal(int64(12), rec.Rank)

	_, err = s.Store.FindByToken(s.Ctx, "old")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ContractSuite) TestUpdateUnknownUser() {
	err := s.Store.UpdateUser(s.Ctx, &model.UserRecord{Username: "ghost"})
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ContractSuite) TestFindByToken() {
	s.create("alice", 0, "tok-a")
	s.create("bob", 4, "tok-b")

	rec, err := s.Store.FindByToken(s.Ctx, "tok-b")
	s.Require().NoError(err)
	s.Equal("bob", rec.Username)
	s.Equal(int64(4), rec.Rank)

	_, err = s.Store.FindByToken(s.Ctx, "tok-c")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ContractSuite) TestEmptyTokenNeverMatches() {
	s.create("alice", 0, "")

	_, err := s.Store.FindByToken(s.Ctx, "")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ContractSuite) TestClearTokens() {
	s.create("alice", 0, "tok-a")
	s.create("bob", 0, "tok-b")

	s.Require().NoError(s.Store.ClearTokens(s.Ctx))

	users, err := s.Store.ListUsers(s.Ctx)
	s.Require().NoError(err)
	for _, u := range users {
		s.Empty(u.Token, u.Username)
	}
	_, err = s.Store.FindByToken(s.Ctx, "tok-a")
	s.ErrorIs(err, model.ErrNotFound)
}
