package auth

import "github.com/baechuer/contacts-api/internal/domain"

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	if de, ok := domain.As(err); ok {
		return de.Code
	}
	return "non_domain_error"
}

// linkError re-kinds codec failures for confirm/reset links: there the caller
// may learn "expired" vs "invalid" and gets 422 instead of 401.
func linkError(err error) error {
	if domain.Is(err, "token_invalid") || domain.Is(err, "token_expired") {
		return domain.Rekind(err, domain.KindUnprocessable)
	}
	return err
}
