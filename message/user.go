package message

import (
	"shopwire/codec"
	"shopwire/model"
	"shopwire/protocol"
)

// empty is embedded by response payloads that carry nothing beyond the status.
type empty struct{}

func (*empty) MarshalWire(*codec.Writer) {}

func (*empty) UnmarshalWire(*codec.Reader) error { return nil }

type LoginRequest struct {
	Username string
	Password string
}

func (*LoginRequest) Type() protocol.MessageType { return protocol.LoginRequest }

func (m *LoginRequest) MarshalWire(w *codec.Writer) {
	w.String(m.Username)
	w.String(m.Password)
}

func (m *LoginRequest) UnmarshalWire(r *codec.Reader) error {
	return readStrings(r, &m.Username, &m.Password)
}

// LoginResult carries the logged-in user's snapshot, password stripped.
type LoginResult struct {
	User model.User
}

func (*LoginResult) ResponseType() protocol.MessageType { return protocol.LoginResponse }

func (m *LoginResult) MarshalWire(w *codec.Writer) { putUser(w, &m.User) }

func (m *LoginResult) UnmarshalWire(r *codec.Reader) error { return getUser(r, &m.User) }

type LoginResponse = Response[LoginResult]

type RegisterRequest struct {
	Username string
	Password string
	Nickname string
	Phone    string
}

func (*RegisterRequest) Type() protocol.MessageType { return protocol.RegisterRequest }

func (m *RegisterRequest) MarshalWire(w *codec.Writer) {
	w.String(m.Username)
	w.String(m.Password)
	w.String(m.Nickname)
	w.String(m.Phone)
}

func (m *RegisterRequest) UnmarshalWire(r *codec.Reader) error {
	return readStrings(r, &m.Username, &m.Password, &m.Nickname, &m.Phone)
}

type RegisterResult struct {
	UserID int32
}

func (*RegisterResult) ResponseType() protocol.MessageType { return protocol.RegisterResponse }

func (m *RegisterResult) MarshalWire(w *codec.Writer) { w.Int32(m.UserID) }

func (m *RegisterResult) UnmarshalWire(r *codec.Reader) error { return readInt32s(r, &m.UserID) }

type RegisterResponse = Response[RegisterResult]

type LogoutRequest struct {
	UserID int32
}

func (*LogoutRequest) Type() protocol.MessageType { return protocol.LogoutRequest }

func (m *LogoutRequest) MarshalWire(w *codec.Writer) { w.Int32(m.UserID) }

func (m *LogoutRequest) UnmarshalWire(r *codec.Reader) error { return readInt32s(r, &m.UserID) }

type LogoutResult struct{ empty }

func (*LogoutResult) ResponseType() protocol.MessageType { return protocol.LogoutResponse }

type LogoutResponse = Response[LogoutResult]

type GetUserInfoRequest struct {
	UserID int32
}

func (*GetUserInfoRequest) Type() protocol.MessageType { return protocol.GetUserInfoRequest }

func (m *GetUserInfoRequest) MarshalWire(w *codec.Writer) { w.Int32(m.UserID) }

func (m *GetUserInfoRequest) UnmarshalWire(r *codec.Reader) error { return readInt32s(r, &m.UserID) }

type UserInfoResult struct {
	User model.User
}

func (*UserInfoResult) ResponseType() protocol.MessageType { return protocol.GetUserInfoResponse }

func (m *UserInfoResult) MarshalWire(w *codec.Writer) { putUser(w, &m.User) }

func (m *UserInfoResult) UnmarshalWire(r *codec.Reader) error { return getUser(r, &m.User) }

type GetUserInfoResponse = Response[UserInfoResult]

type UpdateUserInfoRequest struct {
	UserID         int32
	Nickname       string
	Phone          string
	DefaultAddress string
}

func (*UpdateUserInfoRequest) Type() protocol.MessageType { return protocol.UpdateUserInfoRequest }

func (m *UpdateUserInfoRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.String(m.Nickname)
	w.String(m.Phone)
	w.String(m.DefaultAddress)
}

func (m *UpdateUserInfoRequest) UnmarshalWire(r *codec.Reader) error {
	if err := readInt32s(r, &m.UserID); err != nil {
		return err
	}
	return readStrings(r, &m.Nickname, &m.Phone, &m.DefaultAddress)
}

type UpdateUserInfoResult struct{ empty }

func (*UpdateUserInfoResult) ResponseType() protocol.MessageType {
	return protocol.UpdateUserInfoResponse
}

type UpdateUserInfoResponse = Response[UpdateUserInfoResult]

type ChangeThemeRequest struct {
	UserID    int32
	ThemeName string
}

func (*ChangeThemeRequest) Type() protocol.MessageType { return protocol.ChangeThemeRequest }

func (m *ChangeThemeRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.String(m.ThemeName)
}

func (m *ChangeThemeRequest) UnmarshalWire(r *codec.Reader) error {
	if err := readInt32s(r, &m.UserID); err != nil {
		return err
	}
	return readStrings(r, &m.ThemeName)
}

type ChangeThemeResult struct {
	CurrentTheme string
}

func (*ChangeThemeResult) ResponseType() protocol.MessageType { return protocol.ChangeThemeResponse }

func (m *ChangeThemeResult) MarshalWire(w *codec.Writer) { w.String(m.CurrentTheme) }

func (m *ChangeThemeResult) UnmarshalWire(r *codec.Reader) error {
	return readStrings(r, &m.CurrentTheme)
}

type ChangeThemeResponse = Response[ChangeThemeResult]
