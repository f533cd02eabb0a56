package shop

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
	"shopwire/store"
)

func sessionKey(userID int32) string {
	return strconv.Itoa(int(userID))
}

// Login checks the credentials. Unknown users and wrong passwords look the same to
// the caller.
func (s *Service) Login(ctx context.Context, req *message.LoginRequest) *message.LoginResponse {
	u, err := s.store.UserByName(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.Password != req.Password) {
		return message.Fail[message.LoginResult](protocol.AuthenticationFailed, "invalid username or password")
	}
	if err != nil {
		return fail[message.LoginResult](s, err)
	}
	s.sessions.SetDefault(sessionKey(u.ID), time.Now())
	s.log.Info().Int32("user", u.ID).Msg("login")
	return message.OK(message.LoginResult{User: u.Public()})
}

func (s *Service) RegisterUser(ctx context.Context, req *message.RegisterRequest) *message.RegisterResponse {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return message.Fail[message.RegisterResult](protocol.InvalidRequest, "username and password are required")
	}
	id, err := s.store.CreateUser(ctx, model.User{
		Username:     req.Username,
		Password:     req.Password,
		Nickname:     req.Nickname,
		Phone:        req.Phone,
		Balance:      s.opts.InitialBalance,
		RegisterTime: time.Now().Format(time.DateTime),
		Level:        1,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return message.Fail[message.RegisterResult](protocol.InvalidRequest, "username %q is taken", req.Username)
	}
	if err != nil {
		return fail[message.RegisterResult](s, err)
	}
	return message.OK(message.RegisterResult{UserID: id})
}

func (s *Service) Logout(ctx context.Context, req *message.LogoutRequest) *message.LogoutResponse {
	s.sessions.Delete(sessionKey(req.UserID))
	return message.OK(message.LogoutResult{})
}

// Online reports whether userID logged in and has not logged out or gone idle.
func (s *Service) Online(userID int32) bool {
	_, ok := s.sessions.Get(sessionKey(userID))
	return ok
}

// touch extends an online user's session.
func (s *Service) touch(userID int32) {
	if s.Online(userID) {
		s.sessions.SetDefault(sessionKey(userID), time.Now())
	}
}

func (s *Service) GetUserInfo(ctx context.Context, req *message.GetUserInfoRequest) *message.GetUserInfoResponse {
	u, err := s.store.User(ctx, req.UserID)
	if err != nil {
		return fail[message.UserInfoResult](s, err)
	}
	s.touch(u.ID)
	return message.OK(message.UserInfoResult{User: u.Public()})
}

func (s *Service) UpdateUserInfo(ctx context.Context, req *message.UpdateUserInfoRequest) *message.UpdateUserInfoResponse {
	u, err := s.store.User(ctx, req.UserID)
	if err != nil {
		return fail[message.UpdateUserInfoResult](s, err)
	}
	u.Nickname = req.Nickname
	u.Phone = req.Phone
	u.DefaultAddress = req.DefaultAddress
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fail[message.UpdateUserInfoResult](s, err)
	}
	return message.OK(message.UpdateUserInfoResult{})
}

// ChangeTheme remembers the user's theme for as long as the server runs.
func (s *Service) ChangeTheme(ctx context.Context, req *message.ChangeThemeRequest) *message.ChangeThemeResponse {
	theme := strings.TrimSpace(req.ThemeName)
	if theme == "" {
		return message.Fail[message.ChangeThemeResult](protocol.InvalidRequest, "theme name is required")
	}
	if _, err := s.store.User(ctx, req.UserID); err != nil {
		return fail[message.ChangeThemeResult](s, err)
	}
	s.themes.Set(sessionKey(req.UserID), theme, 0)
	return message.OK(message.ChangeThemeResult{CurrentTheme: theme})
}

// Theme returns the user's theme, or the default one.
func (s *Service) Theme(userID int32) string {
	if v, ok := s.themes.Get(sessionKey(userID)); ok {
		return v.(string)
	}
	return s.opts.DefaultTheme
}
