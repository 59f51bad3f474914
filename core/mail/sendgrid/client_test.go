package sendgrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/knolabs/daela/core/mail"
)

func TestSendPostsSingleMailRequest(t *testing.T) {
	var (
		requestCount  int
		authorization string
		body          []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		authorization = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("expected mail send path, got %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient("test-key", WithHost(server.URL))

	err := client.Send(context.Background(), mail.Email{
		From:    mail.Address{Email: "daela@knolabs.example", Name: "Daela"},
		To:      "patient@example.com",
		Subject: "Your appointment",
		HTML:    "<html><body>See you Monday.</body></html>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requestCount != 1 {
		t.Fatalf("expected exactly one request, got %d", requestCount)
	}
	if authorization != "Bearer test-key" {
		t.Fatalf("expected bearer authorization, got %q", authorization)
	}

	var payload struct {
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	if len(payload.Personalizations) != 1 || len(payload.Personalizations[0].To) != 1 {
		t.Fatalf("expected a single recipient, got %s", body)
	}
	if payload.Personalizations[0].To[0].Email != "patient@example.com" {
		t.Fatalf("unexpected recipient: %q", payload.Personalizations[0].To[0].Email)
	}
	if payload.From.Email != "daela@knolabs.example" {
		t.Fatalf("unexpected sender: %q", payload.From.Email)
	}
	if payload.Subject != "Your appointment" {
		t.Fatalf("unexpected subject: %q", payload.Subject)
	}
}

func TestSendReportsRejectionWithStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	client := NewClient("bad-key", WithHost(server.URL))

	err := client.Send(context.Background(), mail.Email{
		From: mail.Address{Email: "daela@knolabs.example"},
		To:   "patient@example.com",
	})
	if err == nil {
		t.Fatal("expected error on rejected delivery")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected error to carry the status code, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected error to carry the response body, got %v", err)
	}
}
