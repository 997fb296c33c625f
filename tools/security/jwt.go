package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	errs "MChat/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenCookie is the cookie the browser client sends on every request,
// including the WebSocket upgrade.
const TokenCookie = "token"

// Identity is what a verified token resolves to.
type Identity struct {
	UserID   string `json:"userid"`
	Username string `json:"username"`
}

// Options controls signing parameters. Secret comes from ENV in production.
type Options struct {
	Secret []byte
	Alg    string        // HS256/HS384/HS512, default HS256
	TTL    time.Duration // default 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// Generate signs a token carrying the userid/username claims the rest of
// the system keys on.
func Generate(opts Options, id Identity) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL == 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"userid":   id.UserID,
		"username": id.Username,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      exp.Unix(),
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates the token and extracts the bound identity.
func Verify(opts Options, token string) (*Identity, error) {
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, err
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only; reject alg confusion
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errs.ErrTokenExpired.WithDetail(err.Error())
		}
		return nil, errs.ErrTokenInvalid.WithDetail(err.Error())
	}
	if !parsed.Valid {
		return nil, errs.ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrTokenInvalid.WithDetail("claims type mismatch")
	}

	id := &Identity{}
	if v, ok := claims["userid"].(string); ok {
		id.UserID = v
	}
	if v, ok := claims["username"].(string); ok {
		id.Username = v
	}
	if id.UserID == "" {
		return nil, errs.ErrTokenInvalid.WithDetail("userid claim missing")
	}
	return id, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
