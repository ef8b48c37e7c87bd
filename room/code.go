/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// CodeLength is the number of characters in a room code.
const CodeLength = 8

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NormalizeCode trims and uppercases a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks the shape of an already normalized room code.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: %q must be %d characters", ErrInvalidRoomCode, code, CodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidRoomCode, code, r)
		}
	}
	return nil
}

// NewCode generates a crypto-random room code, retrying while taken reports
// a collision with a live room.
func NewCode(taken func(string) bool) string {
	for {
		buf := make([]byte, CodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, CodeLength)
		for i := range out {
			out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(out)
		if taken == nil || !taken(code) {
			return code
		}
	}
}
