package fakeapi

import (
	"context"
	"net/http"
)

func contextWithUser(r *http.Request, username string) context.Context {
	return context.WithValue(r.Context(), ctxUser{}, username)
}
