package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/services"
)

const exchangeID = "fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"

func TestLeaveFeedback_BadInput(t *testing.T) {
	fb := fakeFeedback{fn: func(context.Context, string, string, int) (*domain.Feedback, error) {
		t.Fatalf("service should not be called on bad input")
		return nil, nil
	}}
	r := newRouter(New(Deps{Feedback: fb}))
	hdr := map[string]string{"X-User-ID": "u-1"}

	wantError(t, do(r, http.MethodPost, "/chat/history/not-a-uuid/feedback", `{"value":1}`, hdr), http.StatusBadRequest, ErrCodeBadRequest)
	for _, body := range []string{`{"value":0}`, `{"value":2}`, `{}`} {
		wantError(t, do(r, http.MethodPost, "/chat/history/"+exchangeID+"/feedback", body, hdr), http.StatusBadRequest, ErrCodeBadRequest)
	}
	wantError(t, do(r, http.MethodPost, "/chat/history/"+exchangeID+"/feedback", `{"value":1}`, nil), http.StatusBadRequest, ErrCodeValidation)
}

func TestLeaveFeedback_ErrorMappings(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"not found": {services.ErrExchangeNotFound, http.StatusNotFound, ErrCodeNotFound},
		"invalid":   {services.ErrInvalidFeedback, http.StatusBadRequest, ErrCodeBadRequest},
		"forbidden": {services.ErrForbiddenFeedback, http.StatusForbidden, ErrCodeForbidden},
		"duplicate": {services.ErrDuplicateFeedback, http.StatusConflict, ErrCodeConflict},
		"internal":  {context.DeadlineExceeded, http.StatusInternalServerError, ErrCodeInternal},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fb := fakeFeedback{fn: func(_ context.Context, userID, id string, value int) (*domain.Feedback, error) {
				if userID != "u-123" || id != exchangeID || value != -1 {
					t.Fatalf("unexpected args %q %q %d", userID, id, value)
				}
				return nil, tc.err
			}}
			r := newRouter(New(Deps{Feedback: fb}))
			w := do(r, http.MethodPost, "/chat/history/"+exchangeID+"/feedback", `{"value":-1}`, map[string]string{"X-User-ID": "u-123"})
			wantError(t, w, tc.status, tc.code)
		})
	}
}

func TestLeaveFeedback_Created(t *testing.T) {
	fb := fakeFeedback{fn: func(_ context.Context, userID, id string, value int) (*domain.Feedback, error) {
		return &domain.Feedback{ID: "fb-1", ExchangeID: id, UserID: userID, Value: value}, nil
	}}
	r := newRouter(New(Deps{Feedback: fb}))

	w := do(r, http.MethodPost, "/chat/history/"+exchangeID+"/feedback", `{"value":1}`, map[string]string{"X-User-ID": "u-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	got := decode[domain.Feedback](t, w)
	if got.ID != "fb-1" || got.ExchangeID != exchangeID || got.UserID != "u-1" || got.Value != 1 {
		t.Fatalf("unexpected feedback: %+v", got)
	}
}
