package codec

import "gamecore/internal/errkind"

// PublicLobbyCode is the sentinel room code used for the public
// matchmaking pool.
const PublicLobbyCode int32 = 0x20

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Code2Int packs a 4- or 6-character base-26 room code into a signed
// 32-bit integer. Each character contributes a base-26 digit,
// least-significant digit first; 6-character codes are offset by 26^4 so
// they never collide with 4-character ones. Int2Code(Code2Int(s)) == s
// for any valid code and Code2Int(Int2Code(x)) == x for any x Int2Code
// produced.
func Code2Int(code string) (int32, error) {
	if len(code) != 4 && len(code) != 6 {
		return 0, errkind.Errorf(errkind.Malformed, "room code must be 4 or 6 characters, got %d", len(code))
	}
	var v int64
	mul := int64(1)
	for i := 0; i < len(code); i++ {
		d, ok := digitOf(code[i])
		if !ok {
			return 0, errkind.Errorf(errkind.Malformed, "room code byte %d (%q) not in A-Z", i, code[i])
		}
		v += int64(d) * mul
		mul *= 26
	}
	if len(code) == 6 {
		v += 26 * 26 * 26 * 26
	}
	return int32(v), nil
}

// Int2Code reconstructs the display string for a code integer produced by
// Code2Int. Values that fit a 4-character code (< 26^4) round-trip through
// the shorter form; larger values use the 6-character form once the 26^4
// offset is removed.
func Int2Code(x int32) (string, error) {
	if x < 0 {
		return "", errkind.Errorf(errkind.Malformed, "room code integer %d is negative", x)
	}
	const four = 26 * 26 * 26 * 26
	const six = four * 26 * 26
	length := 4
	v := int64(x)
	if x >= four {
		length = 6
		v -= four
	}
	if v >= six {
		return "", errkind.Errorf(errkind.Malformed, "room code integer %d out of range", x)
	}
	buf := make([]byte, length)
	for i := 0; i < length; i++ {
		buf[i] = codeAlphabet[v%26]
		v /= 26
	}
	return string(buf), nil
}

func digitOf(b byte) (int, bool) {
	if b < 'A' || b > 'Z' {
		return 0, false
	}
	return int(b - 'A'), true
}
