package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/kbooks/params"
)

type ConsentURLBuilder interface {
	AuthCodeURL(state string) string
}

type StateClaims struct {
	UserIdentifier string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthorizeService builds consent URLs and resolves the user identifier carried
// in the oauth state. With a state secret the state is a short lived HS256
// token, otherwise it is the raw user identifier.
type AuthorizeService struct {
	consent     ConsentURLBuilder
	stateSecret string
	now         func() time.Time
}

func (s *AuthorizeService) SignsState() bool {
	return s.stateSecret != ""
}

func (s *AuthorizeService) EncodeState(userIdentifier string) (string, error) {
	if !s.SignsState() || userIdentifier == "" {
		return userIdentifier, nil
	}
	now := s.now()
	claims := StateClaims{
		UserIdentifier: userIdentifier,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(params.OAuthStateExpiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.stateSecret))
}

// DecodeState returns the user identifier for a callback state. A missing state
// maps to the default user.
func (s *AuthorizeService) DecodeState(state string) (string, error) {
	if state == "" {
		return params.DefaultUserIdentifier, nil
	}
	if !s.SignsState() {
		return state, nil
	}

	var claims StateClaims
	token, err := jwt.ParseWithClaims(state, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.stateSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrStateExpired
	}
	if err != nil || !token.Valid || claims.UserIdentifier == "" {
		return "", ErrInvalidState
	}
	return claims.UserIdentifier, nil
}

// AuthorizeURL returns the consent page URL for the given user identifier.
func (s *AuthorizeService) AuthorizeURL(userIdentifier string) (string, error) {
	state, err := s.EncodeState(userIdentifier)
	if err != nil {
		return "", err
	}
	return s.consent.AuthCodeURL(state), nil
}

func NewAuthorizeService(consent ConsentURLBuilder, stateSecret string) *AuthorizeService {
	return &AuthorizeService{
		consent:     consent,
		stateSecret: stateSecret,
		now:         time.Now,
	}
}
