package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid signature")

const signedPrefix = "s:"

// SignSessionID returns the cookie value for a session id: the URL-escaped
// form of "s:<id>.<signature>".
func SignSessionID(secret []byte, sessionID string) string {
	return url.QueryEscape(signedPrefix + sessionID + "." + sign(secret, sessionID))
}

// UnsignSessionID reverses SignSessionID. Any malformed or tampered value
// yields ErrInvalidSignature.
func UnsignSessionID(secret []byte, raw string) (string, error) {
	value, err := url.QueryUnescape(raw)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if !strings.HasPrefix(value, signedPrefix) {
		return "", ErrInvalidSignature
	}
	value = strings.TrimPrefix(value, signedPrefix)

	dot := strings.LastIndex(value, ".")
	if dot <= 0 || dot == len(value)-1 {
		return "", ErrInvalidSignature
	}
	sessionID, signature := value[:dot], value[dot+1:]

	expected := sign(secret, sessionID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidSignature
	}
	return sessionID, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawStdEncoding.EncodeToString(sum.Sum(nil))
}
