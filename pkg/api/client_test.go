package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-authflow/pkg/options"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "not a url", "http://"} {
		if _, err := NewClient(raw); !errors.Is(err, ErrBaseURL) {
			t.Fatalf("%q: expected ErrBaseURL, got %v", raw, err)
		}
	}
}

func TestLoginSendsFormAndDecodesNumericCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/dashboard/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("user") != "0812" || r.PostForm.Get("password") != "secret123" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"responseCode":2002500,"loginData":{"memberID":"M123"}}`)
	})

	got, err := c.Login(context.Background(), Credentials{User: "0812", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	want := LoginResult{Code: CodeSuccess, MemberID: "M123"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("login result mismatch (-want +got):\n%s", diff)
	}
	if !got.Code.IsSuccess() {
		t.Fatal("expected success code")
	}
}

func TestLoginStringCodeAndRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"responseCode":"4001100","loginData":{"memberID":null}}`)
	})

	got, err := c.Login(context.Background(), Credentials{User: "x", Password: "y"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.Code != "4001100" || got.Code.IsSuccess() {
		t.Fatalf("unexpected code %q", got.Code)
	}
	if got.MemberID != "" {
		t.Fatalf("expected empty member id, got %q", got.MemberID)
	}
}

func TestCodeDecodesBothForms(t *testing.T) {
	for _, raw := range []string{`2002500`, `"2002500"`, `" 2002500 "`} {
		var c Code
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if !c.IsSuccess() {
			t.Fatalf("%s: decoded %q, want success", raw, c)
		}
	}
	var c Code
	if err := json.Unmarshal([]byte(`{"x":1}`), &c); err == nil {
		t.Fatal("expected error for object code")
	}
}

func TestRegisterSendsJSON(t *testing.T) {
	var got RegistrationPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"responseCode":"2002500"}`)
	})

	payload := RegistrationPayload{
		FullName:      "Budi",
		Phone:         "0812",
		Email:         "budi@example.com",
		PIN:           "123456",
		Password:      "secret123",
		Province:      "31",
		City:          "3171",
		Gender:        "l",
		DateOfBirth:   "1990-01-02",
		MinatKategori: InterestPlaceholder,
	}
	code, err := c.Register(context.Background(), payload)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !code.IsSuccess() {
		t.Fatalf("unexpected code %q", code)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchOTPUsesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/dashboard/Verify" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("userAccount") != "0812" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"responseCode":2002500}`)
	})

	code, err := c.DispatchOTP(context.Background(), "0812")
	if err != nil || !code.IsSuccess() {
		t.Fatalf("dispatch: code=%q err=%v", code, err)
	}
}

func TestDispatchOTPRequiresPhone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.DispatchOTP(context.Background(), " ")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestProvincesAndCities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/provinces":
			_, _ = io.WriteString(w, `{"provincesData":[{"prov_id":31,"prov_name":"DKI Jakarta"},{"prov_id":"32","prov_name":"Jawa Barat"}]}`)
		case "/api/cities":
			if r.URL.Query().Get("provID") != "31" {
				t.Errorf("unexpected provID %q", r.URL.Query().Get("provID"))
			}
			_, _ = io.WriteString(w, `{"citiesData":[{"city_id":3171,"city_name":"Jakarta Selatan","prov_id":31}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	provinces, err := c.Provinces(context.Background())
	if err != nil {
		t.Fatalf("provinces: %v", err)
	}
	wantProvinces := options.List{{ID: "31", Label: "DKI Jakarta"}, {ID: "32", Label: "Jawa Barat"}}
	if diff := cmp.Diff(wantProvinces, provinces); diff != "" {
		t.Fatalf("provinces mismatch (-want +got):\n%s", diff)
	}

	cities, err := c.Cities(context.Background(), "31")
	if err != nil {
		t.Fatalf("cities: %v", err)
	}
	wantCities := options.List{{ID: "3171", Label: "Jakarta Selatan"}}
	if diff := cmp.Diff(wantCities, cities); diff != "" {
		t.Fatalf("cities mismatch (-want +got):\n%s", diff)
	}
}

func TestTransportErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		})
		_, err := c.Login(context.Background(), Credentials{User: "a", Password: "b"})
		var te *TransportError
		if !errors.As(err, &te) || te.Status != http.StatusBadGateway {
			t.Fatalf("expected 502 transport error, got %v", err)
		}
	})

	t.Run("decode", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		})
		_, err := c.Provinces(context.Background())
		if !IsTransport(err) {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()
		c, err := NewClient(url)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.DispatchOTP(context.Background(), "0812"); !IsTransport(err) {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Cities(ctx, "31")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestGenderCode(t *testing.T) {
	cases := map[string]string{options.GenderMale: "l", options.GenderFemale: "p"}
	for in, want := range cases {
		got, ok := GenderCode(in)
		if !ok || got != want {
			t.Fatalf("GenderCode(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := GenderCode("X"); ok {
		t.Fatal("expected unknown gender to fail")
	}
}
