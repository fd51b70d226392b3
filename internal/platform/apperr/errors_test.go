package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errSentinel = &Error{Kind: KindValidation, Msg: "amount must be positive"}

func TestError_Message(t *testing.T) {
	err := Validation("payment.Add", "amount must be positive")
	if err.Error() != "payment.Add: amount must be positive" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	err = Persistence("treatment.Save", fmt.Errorf("connection reset"))
	if err.Error() != "treatment.Save: write failed: connection reset" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestError_IsSentinelThroughWrap(t *testing.T) {
	err := fmt.Errorf("add payment: %w", &Error{Kind: KindValidation, Op: "payment.Add", Msg: "amount must be positive"})
	if !errors.Is(err, errSentinel) {
		t.Error("expected errors.Is to match sentinel by kind and message")
	}
	if errors.Is(err, &Error{Kind: KindNotFound, Msg: "amount must be positive"}) {
		t.Error("different kind must not match")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have no kind")
	}
	if !IsNotFound(fmt.Errorf("wrap: %w", NotFound("get", "treatment"))) {
		t.Error("expected not_found kind")
	}
	if !IsValidation(Validation("", "bad")) {
		t.Error("expected validation kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("op", "bad"), http.StatusBadRequest},
		{NotFound("op", "payment"), http.StatusNotFound},
		{ExternalService("op", errors.New("timeout")), http.StatusBadGateway},
		{Persistence("op", errors.New("disk")), http.StatusInternalServerError},
		{Consistency("op", "drift"), http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestToHTTP_HidesUnclassified(t *testing.T) {
	he := ToHTTP(errors.New("pq: secret detail"))
	if he.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", he.Message)
	}
	he = ToHTTP(Validation("op", "quantity must be at least 1"))
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
}

func TestToHTTP_ServerErrorsHideCause(t *testing.T) {
	he := ToHTTP(Persistence("treatment.Save", errors.New("pq: duplicate key value violates unique constraint")))
	if he.Code != http.StatusInternalServerError || he.Message != "write failed" {
		t.Errorf("unexpected error: %d %v", he.Code, he.Message)
	}
	if he.Internal == nil {
		t.Error("cause should be kept for logging")
	}
}
