package authz

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNormalizeAdminImpliesAuthorized(t *testing.T) {
	r := Record{Admin: true, Authorized: false}.Normalize()
	if !r.Authorized {
		t.Error("Expected Normalize to set Authorized for admin record")
	}
}

func TestNormalizePreservesNonAdmin(t *testing.T) {
	r := Record{Admin: false, Authorized: true}.Normalize()
	if !r.Authorized || r.Admin {
		t.Errorf("Expected {Authorized:true Admin:false}, got %+v", r)
	}

	r = Record{}.Normalize()
	if r.Authorized || r.Admin {
		t.Errorf("Expected zero record to stay zero, got %+v", r)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		code   int
		isAuth bool
	}{
		{nil, 0, false},
		{ErrUnauthorized, http.StatusUnauthorized, true},
		{ErrForbidden, http.StatusForbidden, true},
		{fmt.Errorf("wrapped: %w", ErrUnauthorized), http.StatusUnauthorized, true},
		{errors.New("network down"), 0, false},
	}

	for _, tt := range tests {
		code, ok := StatusCode(tt.err)
		if ok != tt.isAuth || code != tt.code {
			t.Errorf("StatusCode(%v) = (%d, %v), expected (%d, %v)",
				tt.err, code, ok, tt.code, tt.isAuth)
		}
		if IsAuthError(tt.err) != tt.isAuth {
			t.Errorf("IsAuthError(%v) = %v, expected %v", tt.err, !tt.isAuth, tt.isAuth)
		}
	}
}
