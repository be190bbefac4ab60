package auth

import (
	"errors"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// DefaultLocale is used when the requested locale has no catalog.
const DefaultLocale = "en"

var messages = map[string]map[domain.AuthCode]string{
	"en": {
		domain.AuthInvalidCredentials: "Incorrect email or password.",
		domain.AuthEmailNotConfirmed:  "Your email is not confirmed yet. Please check your inbox.",
		domain.AuthUserNotFound:       "This account does not exist.",
		domain.AuthWeakPassword:       "Password must be at least 6 characters.",
		domain.AuthUserExists:         "This email is already registered.",
		domain.AuthInvalidEmail:       "Please enter a valid email address.",
		domain.AuthSessionExpired:     "Your session has expired. Please sign in again.",
		domain.AuthTooManyAttempts:    "Too many attempts. Please wait a moment and try again.",
		domain.AuthUnknown:            "Something went wrong. Please try again later.",
	},
	"ko": {
		domain.AuthInvalidCredentials: "이메일 또는 비밀번호가 올바르지 않습니다.",
		domain.AuthEmailNotConfirmed:  "이메일 인증이 완료되지 않았습니다. 메일함을 확인해주세요.",
		domain.AuthUserNotFound:       "존재하지 않는 계정입니다.",
		domain.AuthWeakPassword:       "비밀번호는 최소 6자 이상이어야 합니다.",
		domain.AuthUserExists:         "이미 가입된 이메일입니다.",
		domain.AuthInvalidEmail:       "올바른 이메일 형식이 아닙니다.",
		domain.AuthSessionExpired:     "세션이 만료되었습니다. 다시 로그인해주세요.",
		domain.AuthTooManyAttempts:    "시도 횟수가 너무 많습니다. 잠시 후 다시 시도해주세요.",
		domain.AuthUnknown:            "오류가 발생했습니다. 잠시 후 다시 시도해주세요.",
	},
}

// Message turns err into the fixed user-facing text for locale. Errors
// that are not auth errors get the generic retry message.
func Message(err error, locale string) string {
	catalog, ok := messages[normalizeLocale(locale)]
	if !ok {
		catalog = messages[DefaultLocale]
	}

	var ae *domain.AuthError
	if errors.As(err, &ae) {
		if msg, ok := catalog[ae.Code]; ok {
			return msg
		}
	}
	return catalog[domain.AuthUnknown]
}

// normalizeLocale reduces "ko-KR,ko;q=0.9" to "ko".
func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(strings.ToLower(locale))
	if i := strings.IndexAny(locale, ",;"); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}
