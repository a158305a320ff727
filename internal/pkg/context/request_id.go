// Package context carries per-request correlation values shared by the
// transport, logging and audit layers.
package context

import "context"

type key int

const (
	requestIDKey key = iota
	subjectKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSubject records the authenticated subject id so log lines written
// further down the request can be correlated with the caller.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey, subjectID)
}

func GetSubject(ctx context.Context) string {
	return stringValue(ctx, subjectKey)
}

func stringValue(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(k).(string)
	return v
}
