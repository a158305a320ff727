package response

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/baechuer/contacts-api/internal/domain"
)

const maxBodyBytes = 1 << 20

// DecodeJSON decodes exactly one JSON object from the request body into
// dst. It rejects non-JSON content types, unknown fields, bodies over
// 1 MiB and trailing values. The returned invalid_json error carries a
// "reason" meta entry the client can act on.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return invalidJSON("content_type", errors.New("unsupported content type"))
		}
	}

	if w != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return classifyDecodeError(err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("multiple JSON values")
		}
		return invalidJSON("trailing_data", err)
	}
	return nil
}

func classifyDecodeError(err error) error {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return invalidJSON("empty_body", err)
	case errors.As(err, &tooLarge):
		return invalidJSON("too_large", err)
	case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
		return invalidJSON("syntax", err)
	case errors.As(err, &typeErr):
		e := invalidJSON("wrong_type", err)
		e.Meta["field"] = typeErr.Field
		return e
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		e := invalidJSON("unknown_field", err)
		e.Meta["field"] = strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return e
	default:
		return invalidJSON("malformed", err)
	}
}

func invalidJSON(reason string, cause error) *domain.Error {
	return domain.WithMeta(domain.ErrInvalidJSON(cause), map[string]string{"reason": reason})
}
