// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package wire defines the messages a peer exchanges while it joins a session.
//
// The message set is closed: AuthRequest, AuthResponse and CharacterSpawn are
// the only variants, each tagged with its Type on the wire. Receivers switch
// over the concrete type; Decode rejects any tag it does not know.
package wire

// Type tags a message on the wire.
type Type string

// Message tags.
const (
	TypeAuthRequest    Type = "auth_request"
	TypeAuthResponse   Type = "auth_response"
	TypeCharacterSpawn Type = "character_spawn"
)

// Message is one of the session-establishment messages.
type Message interface {
	Type() Type
	message()
}

// ResponseCode is the outcome carried by an AuthResponse.
type ResponseCode byte

// Response codes.
const (
	CodeSuccess            ResponseCode = 100
	CodeInvalidCredentials ResponseCode = 200
)

func (c ResponseCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// AuthRequest is sent once by a client right after its connection opens.
type AuthRequest struct {
	Username string `json:"authUsername"`
	Password string `json:"authPassword"`
}

// AuthResponse is the server's single answer to an AuthRequest.
type AuthResponse struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
}

// Success returns the response sent for matching credentials.
func Success() AuthResponse {
	return AuthResponse{Code: CodeSuccess, Message: "Success"}
}

// InvalidCredentials returns the response sent for mismatching credentials.
func InvalidCredentials() AuthResponse {
	return AuthResponse{Code: CodeInvalidCredentials, Message: "Invalid Credentials"}
}

// Vector3 is a position in world space.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is an orientation in world space.
type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// Identity is the quaternion with no rotation.
var Identity = Quaternion{W: 1}

// CharacterSpawn carries the pose a client wants its player to appear at.
type CharacterSpawn struct {
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

// Type implements Message.
func (AuthRequest) Type() Type { return TypeAuthRequest }

// Type implements Message.
func (AuthResponse) Type() Type { return TypeAuthResponse }

// Type implements Message.
func (CharacterSpawn) Type() Type { return TypeCharacterSpawn }

func (AuthRequest) message()    {}
func (AuthResponse) message()   {}
func (CharacterSpawn) message() {}
